package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/docmind/internal/types"
)

func TestPrintCrawl(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	pages := make([]types.CrawlPage, 7)
	for i := range pages {
		pages[i] = types.CrawlPage{URL: "https://example.test/p" + string(rune('a'+i)), Text: "text"}
	}

	p.PrintCrawl("https://example.test", pages)
	output := buf.String()

	assert.Contains(t, output, "CRAWL RESULT")
	assert.Contains(t, output, "Pages:  7")
	assert.Contains(t, output, "https://example.test/pa (4 chars)")
	assert.Contains(t, output, "... and 2 more")
	assert.NotContains(t, output, "/pg")
}

func TestPrintCrawl_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCrawl("https://example.test", nil)

	assert.Contains(t, buf.String(), "Pages:  0")
}

func TestPrintIndexed(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintIndexed("report.pdf", "docmind-collection", 12)

	output := buf.String()
	assert.Contains(t, output, "INDEXED")
	assert.Contains(t, output, "report.pdf")
	assert.Contains(t, output, "Chunks:      12")
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSources([]types.ScoredDocument{
		{Document: types.SourceDocument{Content: "X is\n  Y", Metadata: map[string]any{"source": "facts.txt"}}, Score: 0.91},
		{Document: types.SourceDocument{Content: "no source"}, Score: 0.5},
	})

	output := buf.String()
	assert.Contains(t, output, "#1  0.910  facts.txt")
	assert.Contains(t, output, "X is Y")
	assert.Contains(t, output, "(text)")
}

func TestPrintSources_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSources(nil)

	assert.Contains(t, buf.String(), "No matching documents")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("TITLE", strings.Repeat("é", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}
