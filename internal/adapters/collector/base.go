// Package collector holds the query loop shared by all platform collectors.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// Searcher runs a single platform query
type Searcher interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error)
}

// Base runs benchmark queries against a Searcher one after another.
// It keeps no state between Collect calls.
type Base struct {
	platform   domain.Platform
	raw        ports.RawStore
	logger     *slog.Logger
	now        func() time.Time
	maxResults int
	maxQueries int
	prepare    func(ctx context.Context) error
	pause      func(ctx context.Context, failed bool) error
	finish     func()
}

// Option configures a Base
type Option func(*Base)

// WithRawStore persists the deduplicated observations of every run
func WithRawStore(store ports.RawStore) Option {
	return func(b *Base) {
		b.raw = store
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		b.logger = logger.With("component", "collector", "platform", string(b.platform))
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(b *Base) {
		b.now = now
	}
}

// WithMaxResults sets the per-query result cap
func WithMaxResults(n int) Option {
	return func(b *Base) {
		b.maxResults = n
	}
}

// WithMaxQueries caps how many benchmark queries are run. Zero runs all.
func WithMaxQueries(n int) Option {
	return func(b *Base) {
		b.maxQueries = n
	}
}

// WithPrepare runs before the first query. A failure is recorded, not fatal.
func WithPrepare(fn func(ctx context.Context) error) Option {
	return func(b *Base) {
		b.prepare = fn
	}
}

// WithPause runs between two queries; failed tells whether the previous
// query returned an error
func WithPause(fn func(ctx context.Context, failed bool) error) Option {
	return func(b *Base) {
		b.pause = fn
	}
}

// WithFinish runs after the last query
func WithFinish(fn func()) Option {
	return func(b *Base) {
		b.finish = fn
	}
}

// NewBase creates the shared collect loop for a platform
func NewBase(platform domain.Platform, opts ...Option) *Base {
	b := &Base{
		platform:   platform,
		logger:     slog.Default().With("component", "collector", "platform", string(platform)),
		now:        time.Now,
		maxResults: 50,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Platform returns the platform of the collector
func (b *Base) Platform() domain.Platform {
	return b.platform
}

// Now returns the current time of the collector clock
func (b *Base) Now() time.Time {
	return b.now()
}

// Logger returns the collector logger
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Skip returns the result of a collector that was not attempted
func (b *Base) Skip(cfg domain.BenchmarkConfig, reason string) *domain.CollectionResult {
	b.logger.Warn("skipping collection", "benchmark", cfg.Code, "reason", reason)
	return domain.SkippedResult(cfg.Code, b.platform, b.now(), reason)
}

// Collect runs the benchmark queries through s and builds the result.
// It never returns an error and recovers from panics in s.
func (b *Base) Collect(ctx context.Context, cfg domain.BenchmarkConfig, s Searcher) (result *domain.CollectionResult) {
	start := b.now()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("collector panicked", "benchmark", cfg.Code, "panic", r)
			result = domain.FailedResult(cfg.Code, b.platform, start, b.now(), fmt.Sprintf("collector panic: %v", r))
		}
	}()
	if b.finish != nil {
		defer b.finish()
	}

	queries := cfg.SearchQueries
	if b.maxQueries > 0 && len(queries) > b.maxQueries {
		queries = queries[:b.maxQueries]
	}

	b.logger.Info("starting collection", "benchmark", cfg.Code, "queries", len(queries))

	var errs []string
	if b.prepare != nil {
		if err := b.prepare(ctx); err != nil {
			b.logger.Warn("collector preparation failed", "benchmark", cfg.Code, "error", err)
			errs = append(errs, fmt.Sprintf("prepare: %v", err))
		}
	}

	opts := cfg.SearchOptions(b.maxResults)
	var collected []domain.PriceObservation

	for i, query := range queries {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Sprintf("%v: skipped %d of %d queries", domain.ErrRunCancelled, len(queries)-i, len(queries)))
			break
		}

		found, err := s.Search(ctx, query, opts)
		if err != nil {
			b.logger.Error("query failed", "benchmark", cfg.Code, "query", query, "error", err)
			errs = append(errs, fmt.Sprintf("query %q: %v", query, err))
		} else {
			kept := b.filter(cfg, found)
			collected = append(collected, kept...)
			b.logger.Debug("query finished",
				"benchmark", cfg.Code,
				"query", query,
				"position", fmt.Sprintf("%d/%d", i+1, len(queries)),
				"found", len(found),
				"kept", len(kept),
			)
		}

		if b.pause != nil && i < len(queries)-1 {
			if perr := b.pause(ctx, err != nil); perr != nil && ctx.Err() == nil {
				errs = append(errs, fmt.Sprintf("pause after query %q: %v", query, perr))
			}
		}
	}

	unique := domain.DeduplicateLowest(collected)

	if b.raw != nil {
		date := start.UTC().Format(domain.DateLayout)
		location, err := b.raw.SaveRaw(context.WithoutCancel(ctx), cfg.Code, b.platform, date, unique)
		if err != nil {
			b.logger.Error("failed to save raw data", "benchmark", cfg.Code, "error", err)
			errs = append(errs, fmt.Sprintf("raw dump: %v", err))
		} else {
			b.logger.Info("saved raw data", "benchmark", cfg.Code, "observations", len(unique), "location", location)
		}
	}

	end := b.now()
	if stats, ok := domain.ComputeStats(domain.PricedValues(unique)); ok {
		b.logger.Info("collection complete",
			"benchmark", cfg.Code,
			"count", stats.Count,
			"avg_price", stats.Average.String(),
			"median_price", stats.Median.String(),
			"min_price", stats.Min.String(),
			"max_price", stats.Max.String(),
			"errors", len(errs),
			"duration_ms", end.Sub(start).Milliseconds(),
		)
	} else {
		b.logger.Warn("collection complete without priced observations",
			"benchmark", cfg.Code,
			"errors", len(errs),
			"duration_ms", end.Sub(start).Milliseconds(),
		)
	}

	return domain.NewCollectionResult(cfg.Code, b.platform, start, end, unique, errs)
}

func (b *Base) filter(cfg domain.BenchmarkConfig, found []domain.PriceObservation) []domain.PriceObservation {
	kept := make([]domain.PriceObservation, 0, len(found))
	for _, o := range found {
		if err := o.Validate(); err != nil {
			b.logger.Debug("dropping invalid observation", "product_id", o.ProductID, "error", err)
			continue
		}
		if !cfg.Accepts(o) {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}
