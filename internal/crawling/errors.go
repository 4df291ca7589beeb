// Package crawling turns a seed URL into a bounded set of same-origin text pages.
package crawling

import "fmt"

// CrawlError represents a crawl that could not start, such as a malformed seed URL.
type CrawlError struct {
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s", e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// EmptyCrawlError reports a crawl that completed without collecting any page.
type EmptyCrawlError struct {
	SeedURL string
}

func (e *EmptyCrawlError) Error() string {
	return fmt.Sprintf("no pages found while crawling %s", e.SeedURL)
}

// LinkExtractionError represents a failure in extracting links from HTML
type LinkExtractionError struct {
	Message string
	Cause   error
}

func (e *LinkExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("link extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("link extraction error: %s", e.Message)
}

func (e *LinkExtractionError) Unwrap() error {
	return e.Cause
}
