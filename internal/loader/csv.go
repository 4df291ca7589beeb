package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/docmind/internal/types"
)

// CSVLoader yields one document per data row. The first row is the header;
// each document renders its row as "column: value" lines.
type CSVLoader struct{}

// Load implements Loader.
func (CSVLoader) Load(ctx context.Context, path string) ([]types.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "csv", Message: "failed to open file", Cause: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Format: "csv", Message: "failed to read header", Cause: err}
	}

	docs := make([]types.SourceDocument, 0)
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: path, Format: "csv", Message: fmt.Sprintf("failed to read row %d", line), Cause: err}
		}

		content := formatRow(header, record)
		if content == "" {
			continue
		}
		docs = append(docs, types.SourceDocument{
			Content:  content,
			Metadata: map[string]any{"source": path, "line": line},
		})
	}
	return docs, nil
}

// formatRow renders a record as "header: value" lines, skipping empty cells.
func formatRow(header, record []string) string {
	var b strings.Builder
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		name := fmt.Sprintf("column%d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}
