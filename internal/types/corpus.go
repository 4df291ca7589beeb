package types

// Source represents a single crawled page with metadata
type Source struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"` // RFC3339 format
	Hash      string `json:"hash"`      // SHA256 hex digest
}

// WebsiteCorpus is the concatenated text of a crawl plus one Source per page.
type WebsiteCorpus struct {
	Corpus  string   `json:"corpus"`
	Sources []Source `json:"sources"`
}
