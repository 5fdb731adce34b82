package collector_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

type searchFunc func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error)

func (f searchFunc) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
	return f(ctx, query, opts)
}

type rawStoreStub struct {
	mu    sync.Mutex
	calls []rawCall
	err   error
}

type rawCall struct {
	benchmark    string
	platform     domain.Platform
	date         string
	observations []domain.PriceObservation
}

func (s *rawStoreStub) SaveRaw(ctx context.Context, benchmark string, platform domain.Platform, date string, observations []domain.PriceObservation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawCall{benchmark, platform, date, observations})
	return "raw/" + benchmark, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listing(id, title string, price int64) domain.PriceObservation {
	return domain.PriceObservation{
		ProductID: id,
		Platform:  domain.PlatformEbay,
		Title:     title,
		Price:     decimal.NewFromInt(price),
		Currency:  domain.DefaultCurrency,
		Condition: domain.ConditionNew,
	}
}

func testBenchmark(queries ...string) domain.BenchmarkConfig {
	return domain.BenchmarkConfig{
		Code:            "ECI-TST",
		Name:            "Test Index",
		Platforms:       []domain.Platform{domain.PlatformEbay},
		SearchQueries:   queries,
		PriceFilter:     domain.PriceBounds{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(100)},
		ExcludeKeywords: []string{"case"},
		ConditionFilter: []domain.Condition{domain.ConditionNew},
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 10, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	return func() time.Time { return t }
}

func TestBase_CollectFiltersAndDeduplicates(t *testing.T) {
	raw := &rawStoreStub{}
	base := collector.NewBase(domain.PlatformEbay,
		collector.WithLogger(quietLogger()),
		collector.WithRawStore(raw),
		collector.WithClock(fixedClock()),
	)

	results := map[string][]domain.PriceObservation{
		"phone": {
			listing("a", "Phone A", 50),
			listing("b", "Phone B with case", 40),
			listing("c", "Phone C", 500),
		},
		"phone cheap": {
			listing("a", "Phone A", 45),
			listing("d", "Phone D", 20),
		},
	}
	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		assert.Equal(t, domain.ConditionNew, opts.Condition)
		assert.True(t, opts.PriceMin.Equal(decimal.NewFromInt(10)))
		return results[query], nil
	})

	result := base.Collect(context.Background(), testBenchmark("phone", "phone cheap"), searcher)

	require.NotNil(t, result)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Observations, 2)
	assert.Equal(t, "a", result.Observations[0].ProductID)
	assert.True(t, result.Observations[0].Price.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, "d", result.Observations[1].ProductID)
	assert.Equal(t, 2, result.TotalProducts)
	assert.Equal(t, 2, result.ValidProducts)

	require.Len(t, raw.calls, 1)
	assert.Equal(t, "ECI-TST", raw.calls[0].benchmark)
	assert.Equal(t, domain.PlatformEbay, raw.calls[0].platform)
	assert.Equal(t, "2025-03-10", raw.calls[0].date)
	assert.Len(t, raw.calls[0].observations, 2)
}

func TestBase_CollectRecordsQueryErrors(t *testing.T) {
	base := collector.NewBase(domain.PlatformEbay, collector.WithLogger(quietLogger()))

	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		if query == "broken" {
			return nil, errors.New("upstream unavailable")
		}
		return []domain.PriceObservation{listing(query, "Item", 30)}, nil
	})

	result := base.Collect(context.Background(), testBenchmark("first", "broken", "last"), searcher)

	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken")
	assert.Contains(t, result.Errors[0], "upstream unavailable")
	assert.Len(t, result.Observations, 2)
}

func TestBase_CollectLimitsQueries(t *testing.T) {
	var seen []string
	base := collector.NewBase(domain.PlatformIdealo,
		collector.WithLogger(quietLogger()),
		collector.WithMaxQueries(2),
	)

	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		seen = append(seen, query)
		return nil, nil
	})

	result := base.Collect(context.Background(), testBenchmark("q1", "q2", "q3"), searcher)

	assert.Equal(t, []string{"q1", "q2"}, seen)
	assert.Empty(t, result.Observations)
	assert.Equal(t, 0, result.ValidProducts)
}

func TestBase_CollectPausesBetweenQueries(t *testing.T) {
	var pauses []bool
	var finished bool
	base := collector.NewBase(domain.PlatformGeizhals,
		collector.WithLogger(quietLogger()),
		collector.WithPause(func(ctx context.Context, failed bool) error {
			pauses = append(pauses, failed)
			return nil
		}),
		collector.WithFinish(func() { finished = true }),
	)

	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		if query == "bad" {
			return nil, errors.New("blocked")
		}
		return nil, nil
	})

	base.Collect(context.Background(), testBenchmark("ok", "bad", "ok2"), searcher)

	assert.Equal(t, []bool{false, true}, pauses)
	assert.True(t, finished)
}

func TestBase_CollectStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	raw := &rawStoreStub{}
	base := collector.NewBase(domain.PlatformEbay,
		collector.WithLogger(quietLogger()),
		collector.WithRawStore(raw),
	)

	calls := 0
	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		calls++
		cancel()
		return []domain.PriceObservation{listing("x", "Item", 20)}, nil
	})

	result := base.Collect(ctx, testBenchmark("q1", "q2", "q3"), searcher)

	assert.Equal(t, 1, calls)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "skipped 2 of 3 queries")
	assert.Len(t, result.Observations, 1)
	assert.Len(t, raw.calls, 1)
}

func TestBase_CollectRecoversFromPanic(t *testing.T) {
	base := collector.NewBase(domain.PlatformAmazon, collector.WithLogger(quietLogger()))

	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		panic("selector exploded")
	})

	result := base.Collect(context.Background(), testBenchmark("q"), searcher)

	require.NotNil(t, result)
	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Errors[0], "selector exploded")
	assert.Empty(t, result.Observations)
}

func TestBase_CollectKeepsResultWhenRawSaveFails(t *testing.T) {
	raw := &rawStoreStub{err: errors.New("disk full")}
	base := collector.NewBase(domain.PlatformEbay,
		collector.WithLogger(quietLogger()),
		collector.WithRawStore(raw),
	)

	searcher := searchFunc(func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
		return []domain.PriceObservation{listing("x", "Item", 20)}, nil
	})

	result := base.Collect(context.Background(), testBenchmark("q"), searcher)

	assert.Len(t, result.Observations, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "disk full")
}

func TestBase_Skip(t *testing.T) {
	base := collector.NewBase(domain.PlatformEbay, collector.WithLogger(quietLogger()))

	result := base.Skip(testBenchmark("q"), "credentials missing")

	assert.True(t, result.Skipped())
	assert.Equal(t, []string{"credentials missing"}, result.Errors)
	assert.Equal(t, domain.PlatformEbay, result.Platform)
}
