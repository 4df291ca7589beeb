// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/docmind/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintCrawl outputs the pages collected by a crawl.
func (p *Printer) PrintCrawl(seedURL string, pages []types.CrawlPage) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Seed:   %s\n", seedURL))
	sb.WriteString(fmt.Sprintf("Pages:  %d\n", len(pages)))

	if len(pages) > 0 {
		sb.WriteString("\n")
		count := min(len(pages), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s (%d chars)\n", pages[i].URL, len([]rune(pages[i].Text))))
		}
		if len(pages) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(pages)-maxItemsToShow))
		}
	}

	p.printBox("CRAWL RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintIndexed outputs where an ingested source was stored.
func (p *Printer) PrintIndexed(source, collection string, chunks int) {
	content := fmt.Sprintf("Source:      %s\nCollection:  %s\nChunks:      %d", source, collection, chunks)
	p.printBox("INDEXED", content)
}

// PrintSources outputs the retrieved documents used to ground an answer.
func (p *Printer) PrintSources(docs []types.ScoredDocument) {
	if len(docs) == 0 {
		p.printBox("RETRIEVED CONTEXT", "No matching documents")
		return
	}

	var sb strings.Builder
	for i, d := range docs {
		label := "(text)"
		if src, ok := d.Document.Metadata["source"].(string); ok && src != "" {
			label = src
		}
		sb.WriteString(fmt.Sprintf("#%d  %.3f  %s\n", i+1, d.Score, label))
		snippet := strings.Join(strings.Fields(d.Document.Content), " ")
		sb.WriteString(fmt.Sprintf("    %s\n", snippet))
	}

	p.printBox("RETRIEVED CONTEXT", strings.TrimSuffix(sb.String(), "\n"))
}
