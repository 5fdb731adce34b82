package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

var collectedAt = time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func observation(platform domain.Platform, id, price string) domain.PriceObservation {
	return domain.PriceObservation{
		ProductID:   id,
		Platform:    platform,
		Price:       decimal.RequireFromString(price),
		Currency:    domain.DefaultCurrency,
		Condition:   domain.ConditionNew,
		InStock:     true,
		CollectedAt: collectedAt,
	}
}

func completed(benchmark string, platform domain.Platform, prices ...string) *domain.CollectionResult {
	observations := make([]domain.PriceObservation, 0, len(prices))
	for i, p := range prices {
		observations = append(observations, observation(platform, string(platform)+"_"+string(rune('a'+i)), p))
	}
	return domain.NewCollectionResult(benchmark, platform, collectedAt, collectedAt.Add(time.Minute), observations, nil)
}

// fakeCollector returns canned results and can block or panic on demand
type fakeCollector struct {
	platform  domain.Platform
	prices    []string
	panicMsg  string
	nilResult bool

	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeCollector) Platform() domain.Platform {
	return f.platform
}

func (f *fakeCollector) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
	return []domain.PriceObservation{}, nil
}

func (f *fakeCollector) Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.nilResult {
		return nil
	}
	return completed(cfg.Code, f.platform, f.prices...)
}

func (f *fakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingMetrics records what the services report
type countingMetrics struct {
	mu          sync.Mutex
	collections []*domain.CollectionResult
	successes   []string
	failures    []string
}

func (m *countingMetrics) GetMetrics(ctx context.Context) (*domain.Metrics, error) {
	return &domain.Metrics{}, nil
}

func (m *countingMetrics) RecordRunSuccess(benchmark, trigger string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, benchmark)
}

func (m *countingMetrics) RecordRunError(benchmark, trigger string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, benchmark)
}

func (m *countingMetrics) RecordCollection(result *domain.CollectionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = append(m.collections, result)
}

func (m *countingMetrics) RecordHeartbeat(at time.Time) {}
func (m *countingMetrics) GetLastRunTime() *time.Time   { return nil }
func (m *countingMetrics) GetLastHeartbeat() *time.Time { return nil }

func testBenchmark(code string, platforms ...domain.Platform) domain.BenchmarkConfig {
	return domain.BenchmarkConfig{
		Code:          code,
		Name:          "Test " + code,
		Category:      "testing",
		Platforms:     platforms,
		SearchQueries: []string{"query"},
		Methodology:   "Test methodology for " + code,
	}
}
