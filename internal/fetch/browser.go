// Package fetch - browser.go provides headless browser rendering for pages that build their content in JavaScript.
package fetch

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the minimum extracted text length to consider an HTTP fetch useful.
// Shorter pages are re-rendered in a browser when rendering is enabled.
const MinContentLength = 200

// ShouldRender returns true if the extracted text is too short,
// indicating the page is likely rendered client side.
func ShouldRender(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Render loads a page in a headless browser and returns the rendered HTML.
// Requires Chrome/Chromium to be installed on the system.
func Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	log.Printf("[browser] rendering %s", url)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	return html, nil
}
