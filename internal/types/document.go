// Package types provides type definitions for structured data used throughout docmind.
package types

// CrawlPage is one successfully visited page of a website crawl.
type CrawlPage struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// SourceDocument is the uniform unit produced by the loaders regardless of the
// original format (PDF page, CSV row, plain text, crawled website text).
type SourceDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ScoredDocument is a SourceDocument returned by a similarity search.
type ScoredDocument struct {
	Document SourceDocument `json:"document"`
	Score    float64        `json:"score"`
}
