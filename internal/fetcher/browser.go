package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Browser renders pages in headless Chrome. Every call launches its own
// browser process and tears it down afterwards.
type Browser struct {
	config Config
}

// NewBrowser creates a headless browser fetcher.
func NewBrowser(config Config) *Browser {
	return &Browser{config: withDefaults(config)}
}

// Fetch navigates to pageURL, waits for the body to be ready and returns
// the rendered document. Navigation errors are returned as reported by
// the browser.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := validateURL(pageURL); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.config.UserAgent),
		chromedp.Flag("incognito", true),
		chromedp.Flag("disk-cache-size", "1"),
	)
	if b.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.config.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	loadCtx, cancelLoad := context.WithTimeout(browserCtx, b.config.Timeout)
	defer cancelLoad()

	start := time.Now()
	var doc, finalURL string
	err := chromedp.Run(loadCtx,
		network.Enable(),
		network.SetCacheDisabled(true),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)
	if err != nil {
		slog.Debug("browser fetch failed", "url", pageURL, "elapsed", time.Since(start), "error", err)
		return nil, err
	}

	slog.Debug("browser fetch complete", "url", finalURL, "size", len(doc), "elapsed", time.Since(start))
	return &Result{
		URL:         finalURL,
		ContentType: "text/html",
		Body:        doc,
	}, nil
}
