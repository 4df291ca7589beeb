package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSpreadsheetLoader_OneDocumentPerRow(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"product", "price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"widget", 10}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"gadget", 25}))

	_, err := f.NewSheet("Empty")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	docs, err := NewRegistry().WithSpreadsheets().Load(context.Background(), FileSource{Path: path, DeclaredType: TypeSpreadsheet})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "product: widget\nprice: 10", docs[0].Content)
	assert.Equal(t, sheet, docs[0].Metadata["sheet"])
	assert.Equal(t, 2, docs[0].Metadata["row"])
	assert.Equal(t, "product: gadget\nprice: 25", docs[1].Content)
	assert.Equal(t, 3, docs[1].Metadata["row"])
}

func TestSpreadsheetLoader_InvalidWorkbook(t *testing.T) {
	path := writeFile(t, "bad.xlsx", "not a zip")

	_, err := SpreadsheetLoader{}.Load(context.Background(), path)
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}
