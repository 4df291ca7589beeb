package loader

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jonathan/docmind/internal/types"
)

// PDFLoader yields one document per page that has extractable text.
type PDFLoader struct{}

// Load implements Loader.
func (PDFLoader) Load(ctx context.Context, path string) ([]types.SourceDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "pdf", Message: "failed to open document", Cause: err}
	}
	defer f.Close()

	total := r.NumPage()
	docs := make([]types.SourceDocument, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &LoadError{Path: path, Format: "pdf", Message: "failed to extract page text", Cause: err}
		}
		text = CleanText(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, types.SourceDocument{
			Content: text,
			Metadata: map[string]any{
				"source":      path,
				"page":        i,
				"total_pages": total,
			},
		})
	}
	return docs, nil
}
