package fetcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gocolly/colly/v2"
)

// Static fetches raw HTML without executing scripts.
type Static struct {
	config Config
}

// NewStatic creates a static fetcher.
func NewStatic(config Config) *Static {
	return &Static{config: withDefaults(config)}
}

// Fetch retrieves pageURL with a collector that lives only for this call.
func (s *Static) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := validateURL(pageURL); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(s.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.config.Timeout)

	var (
		result   *Result
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Pragma", "no-cache")
	})

	c.OnResponse(func(r *colly.Response) {
		result = &Result{
			URL:         r.Request.URL.String(),
			ContentType: r.Headers.Get("Content-Type"),
			Body:        string(r.Body),
			StatusCode:  r.StatusCode,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		slog.Debug("static fetch failed", "url", pageURL, "status", r.StatusCode, "error", err)
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if result == nil {
		return nil, errors.New("no response received")
	}

	slog.Debug("static fetch complete", "url", result.URL, "content_type", result.ContentType, "size", len(result.Body))
	return result, nil
}
