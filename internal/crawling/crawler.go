package crawling

import (
	"context"
	"log"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/docmind/internal/fetch"
	"github.com/jonathan/docmind/internal/types"
)

const (
	// DefaultMaxPages is the page budget used for website ingestion.
	DefaultMaxPages = 50
	// DefaultWorkers is the number of concurrent page fetches.
	DefaultWorkers = 4
	// DefaultRenderTimeout bounds a headless browser render.
	DefaultRenderTimeout = 30 * time.Second
)

// Fetcher retrieves a single page.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Result, error)
}

// Renderer returns the browser-rendered HTML of a page.
type Renderer func(ctx context.Context, url string) (string, error)

// Options configures a Crawler.
type Options struct {
	Workers       int
	UseBrowser    bool
	RenderTimeout time.Duration
	Renderer      Renderer
}

// Crawler performs a same-origin traversal from a seed URL with a fixed-size worker pool.
type Crawler struct {
	fetcher Fetcher
	opts    Options
}

// New creates a Crawler.
func New(fetcher Fetcher, opts Options) *Crawler {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultRenderTimeout
	}
	if opts.UseBrowser && opts.Renderer == nil {
		timeout := opts.RenderTimeout
		opts.Renderer = func(ctx context.Context, u string) (string, error) {
			return fetch.Render(ctx, u, timeout)
		}
	}
	return &Crawler{fetcher: fetcher, opts: opts}
}

type visitResult struct {
	page  *types.CrawlPage
	links []string
}

// Crawl visits at most maxPages same-origin pages reachable from seedURL.
// Per-page failures are logged and skipped; the pages collected so far are
// always returned. A non-nil error means the seed was invalid or ctx ended.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxPages int) ([]types.CrawlPage, error) {
	seed, err := url.Parse(seedURL)
	if err != nil || seed.Host == "" || (seed.Scheme != "http" && seed.Scheme != "https") {
		return nil, &CrawlError{
			Message: "seed URL must be an absolute http(s) URL: " + seedURL,
			Cause:   err,
		}
	}
	if maxPages < 1 {
		return nil, &CrawlError{Message: "max pages must be at least 1"}
	}

	jobs := make(chan string)
	results := make(chan visitResult, c.opts.Workers)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < c.opts.Workers; i++ {
		g.Go(func() error {
			for target := range jobs {
				select {
				case results <- c.visit(gCtx, target):
				case <-gCtx.Done():
					return nil
				}
			}
			return nil
		})
	}

	// The coordinator owns the visited set and the frontier; workers only fetch.
	visited := map[string]bool{Normalize(seed): true}
	frontier := []string{seedURL}
	pages := make([]types.CrawlPage, 0)
	inFlight := 0

	for len(frontier) > 0 || inFlight > 0 {
		var dispatch chan string
		var next string
		if len(frontier) > 0 {
			dispatch = jobs
			next = frontier[0]
		}

		select {
		case dispatch <- next:
			frontier = frontier[1:]
			inFlight++
		case r := <-results:
			inFlight--
			if r.page != nil {
				pages = append(pages, *r.page)
			}
			for _, link := range r.links {
				if len(visited) >= maxPages {
					break
				}
				u, err := url.Parse(link)
				if err != nil || !SameOrigin(seed, u) {
					continue
				}
				key := Normalize(u)
				if visited[key] {
					continue
				}
				visited[key] = true
				frontier = append(frontier, key)
			}
		case <-ctx.Done():
			close(jobs)
			_ = g.Wait()
			return pages, ctx.Err()
		}
	}

	close(jobs)
	_ = g.Wait()

	log.Printf("[crawl] %s: collected %d pages (%d visited)", seedURL, len(pages), len(visited))
	return pages, nil
}

// visit fetches one page and extracts its text and outbound links.
func (c *Crawler) visit(ctx context.Context, target string) visitResult {
	res, err := c.fetcher.Get(ctx, target)
	if err != nil {
		log.Printf("[crawl] failed to fetch %s: %v", target, err)
		return visitResult{}
	}
	if !fetch.IsHTML(res.ContentType) {
		log.Printf("[crawl] skipping %s: content type %q", target, res.ContentType)
		return visitResult{}
	}

	html := res.HTML
	text, err := fetch.ExtractBodyText(html)
	if err != nil {
		log.Printf("[crawl] failed to extract text from %s: %v", target, err)
		return visitResult{}
	}

	if c.opts.UseBrowser && c.opts.Renderer != nil && fetch.ShouldRender(text) {
		rendered, err := c.opts.Renderer(ctx, target)
		if err != nil {
			log.Printf("[crawl] browser fallback failed for %s: %v", target, err)
		} else if renderedText, err := fetch.ExtractBodyText(rendered); err == nil && len(renderedText) > len(text) {
			html, text = rendered, renderedText
		}
	}

	links, err := ExtractLinks(html, target)
	if err != nil {
		log.Printf("[crawl] failed to extract links from %s: %v", target, err)
	}

	return visitResult{
		page:  &types.CrawlPage{URL: target, Text: text},
		links: links,
	}
}
