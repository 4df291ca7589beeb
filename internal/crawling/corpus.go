package crawling

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/docmind/internal/types"
)

// PageSeparator separates pages in a website corpus.
const PageSeparator = "\n\n---\n\n"

// BuildCorpus concatenates crawled pages into one text body, each page
// preceded by a "URL: <url>" header.
func BuildCorpus(pages []types.CrawlPage) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		parts = append(parts, fmt.Sprintf("URL: %s\n\n%s", page.URL, page.Text))
	}
	return strings.Join(parts, PageSeparator)
}

// BuildWebsiteCorpus returns the corpus together with one hashed Source per page.
func BuildWebsiteCorpus(pages []types.CrawlPage) *types.WebsiteCorpus {
	now := time.Now().UTC().Format(time.RFC3339)
	sources := make([]types.Source, 0, len(pages))
	for _, page := range pages {
		sources = append(sources, types.Source{
			URL:       page.URL,
			Timestamp: now,
			Hash:      computeHash(page.Text),
		})
	}
	return &types.WebsiteCorpus{
		Corpus:  BuildCorpus(pages),
		Sources: sources,
	}
}

// SiteTitle derives a display title from a site's hostname ("www.example.com" -> "Example").
func SiteTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	name := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	name = strings.Split(name, ".")[0]
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
