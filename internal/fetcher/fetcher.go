// Package fetcher retrieves a single page, always bypassing caches.
//
// Two engines are available: Browser renders the page in a fresh headless
// Chrome per call, Static performs a plain HTTP fetch with a fresh colly
// collector per call. Neither retries and neither shares state across calls.
package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// DefaultTimeout is the page-load timeout applied when none is configured.
const DefaultTimeout = 80 * time.Second

// Config holds fetcher configuration.
type Config struct {
	Engine     string // "browser" or "static"
	Timeout    time.Duration
	UserAgent  string
	ChromePath string // optional browser binary for the browser engine
}

// Result is the raw body of a fetched page.
type Result struct {
	URL         string // final URL after redirects
	ContentType string
	Body        string
	StatusCode  int
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Result, error)
}

// New returns the engine selected by cfg.Engine.
func New(cfg Config) (Fetcher, error) {
	switch cfg.Engine {
	case "", "browser":
		return NewBrowser(cfg), nil
	case "static":
		return NewStatic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fetcher engine %q", cfg.Engine)
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "supavec/1.0"
	}
	return cfg
}

// validateURL rejects anything that is not an absolute http(s) URL.
func validateURL(pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", pageURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", pageURL)
	}
	return nil
}
