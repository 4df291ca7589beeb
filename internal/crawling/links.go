package crawling

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the same-origin links of a page in discovery order.
// Targets are resolved against the page URL, or the document's <base href> when present,
// and returned in normalized form without duplicates.
func ExtractLinks(htmlContent string, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse page URL",
			Cause:   err,
		}
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, &LinkExtractionError{
			Message: fmt.Sprintf("invalid page URL: %s (must have scheme and host)", pageURL),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse HTML",
			Cause:   err,
		}
	}

	resolveBase := base
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if baseHref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			resolveBase = base.ResolveReference(baseHref)
		}
	}

	linkSet := make(map[string]bool)
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		href = strings.TrimSpace(href)
		if !exists || href == "" {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			// Malformed links are skipped
			return
		}

		absoluteURL := resolveBase.ResolveReference(linkURL)
		if !SameOrigin(base, absoluteURL) {
			return
		}

		normalized := Normalize(absoluteURL)
		if !linkSet[normalized] {
			linkSet[normalized] = true
			links = append(links, normalized)
		}
	})

	return links, nil
}

// SameOrigin reports whether two URLs share scheme, host and effective port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	schemeA, schemeB := strings.ToLower(a.Scheme), strings.ToLower(b.Scheme)
	if schemeA != schemeB || (schemeA != "http" && schemeA != "https") {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

// Normalize returns the canonical visited-set key of a URL: lowercase scheme and host,
// no default port, no fragment, and "/" for an empty path.
func Normalize(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	host := strings.ToLower(n.Hostname())
	if port := n.Port(); port != "" && port != defaultPort(n.Scheme) {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	n.Host = host
	n.Fragment = ""
	n.RawFragment = ""
	if n.Path == "" {
		n.Path = "/"
	}
	return n.String()
}

func effectivePort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	return defaultPort(strings.ToLower(u.Scheme))
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
