package ports

import (
	"context"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// Collector turns search queries into price observations for one platform
type Collector interface {
	// Platform returns the platform served by the collector
	Platform() domain.Platform

	// Search runs one query. Zero hits is an empty slice, not an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error)

	// Collect runs every query of the benchmark and never fails; problems
	// are reported in the result
	Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult
}

// Configurable is implemented by collectors that depend on credentials
type Configurable interface {
	// Configured reports whether all required credentials are present
	Configured() bool
}

// TokenCache stores bearer tokens between searches and processes
type TokenCache interface {
	// Get returns a cached token and whether it was found
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a token for ttl
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// PageFetcher loads a page for the scraping collectors
type PageFetcher interface {
	// Fetch returns the page behind url
	Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Page, error)
}
