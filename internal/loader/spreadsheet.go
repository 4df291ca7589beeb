package loader

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/docmind/internal/types"
)

// SpreadsheetLoader reads xlsx workbooks, one document per non-empty data row
// per sheet. The first row of every sheet is its header.
type SpreadsheetLoader struct{}

// Load implements Loader.
func (SpreadsheetLoader) Load(ctx context.Context, path string) ([]types.SourceDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "xlsx", Message: "failed to open workbook", Cause: err}
	}
	defer func() { _ = f.Close() }()

	docs := make([]types.SourceDocument, 0)
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &LoadError{Path: path, Format: "xlsx", Message: "failed to read sheet " + sheet, Cause: err}
		}
		if len(rows) < 2 {
			continue
		}
		header := rows[0]
		for i, row := range rows[1:] {
			content := formatRow(header, row)
			if content == "" {
				continue
			}
			docs = append(docs, types.SourceDocument{
				Content: content,
				Metadata: map[string]any{
					"source": path,
					"sheet":  sheet,
					"row":    i + 2,
				},
			})
		}
	}
	return docs, nil
}
