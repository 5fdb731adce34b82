package scrape

import (
	"context"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

// HTTPFetcher loads pages through a rate limited transport
type HTTPFetcher struct {
	client *transport.Transport
}

// NewHTTPFetcher creates a fetcher using client
func NewHTTPFetcher(client *transport.Transport) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch performs a GET with the given headers
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Page, error) {
	resp, err := f.client.Get(ctx, url, transport.Headers(headers))
	if err != nil {
		return nil, err
	}
	return &domain.Page{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Cookies:    resp.Cookies,
	}, nil
}

// LimitedFetcher spaces the calls of a fetcher that has no limiter of its
// own, e.g. the headless browser
type LimitedFetcher struct {
	fetcher ports.PageFetcher
	limiter *ratelimit.Limiter
}

// NewLimitedFetcher wraps fetcher with limiter
func NewLimitedFetcher(fetcher ports.PageFetcher, limiter *ratelimit.Limiter) *LimitedFetcher {
	return &LimitedFetcher{fetcher: fetcher, limiter: limiter}
}

// Fetch waits for the limiter, then delegates
func (f *LimitedFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Page, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return f.fetcher.Fetch(ctx, url, headers)
}
