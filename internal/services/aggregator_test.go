package services_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/filestore"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/services"
)

func newAggregator(t *testing.T) (*services.Aggregator, *filestore.Store) {
	t.Helper()

	dir := t.TempDir()
	store := filestore.New(
		filepath.Join(dir, "raw"),
		filepath.Join(dir, "processed"),
		filepath.Join(dir, "export"),
	)

	set, err := domain.NewBenchmarkSet(domain.DefaultBenchmarks())
	require.NoError(t, err)

	return services.NewAggregator(store, store, set, newTestLogger()), store
}

func point(date string, platform domain.Platform, avg string, sample int) domain.AggregatedPoint {
	d := decimal.RequireFromString(avg)
	return domain.AggregatedPoint{
		Date:         date,
		Platform:     platform,
		Category:     "ECI-SMP-300",
		AveragePrice: d,
		MedianPrice:  d,
		MinPrice:     d,
		MaxPrice:     d,
		SampleSize:   sample,
	}
}

func TestAggregator_Summarize(t *testing.T) {
	agg, _ := newAggregator(t)

	t.Run("even sample uses mean of middle values", func(t *testing.T) {
		result := completed("ECI-SMP-300", domain.PlatformEbay, "40", "0", "10", "30", "20")

		p, ok := agg.Summarize(result)

		require.True(t, ok)
		assert.Equal(t, "2025-03-09", p.Date)
		assert.Equal(t, domain.PlatformEbay, p.Platform)
		assert.Equal(t, "ECI-SMP-300", p.Category)
		assert.Equal(t, 4, p.SampleSize)
		assert.True(t, p.AveragePrice.Equal(decimal.NewFromInt(25)))
		assert.True(t, p.MedianPrice.Equal(decimal.NewFromInt(25)))
		assert.True(t, p.MinPrice.Equal(decimal.NewFromInt(10)))
		assert.True(t, p.MaxPrice.Equal(decimal.NewFromInt(40)))
	})

	t.Run("odd sample uses middle value", func(t *testing.T) {
		p, ok := agg.Summarize(completed("ECI-SMP-300", domain.PlatformEbay, "30", "10", "20"))

		require.True(t, ok)
		assert.True(t, p.MedianPrice.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, 3, p.SampleSize)
	})

	t.Run("average is rounded to cents", func(t *testing.T) {
		p, ok := agg.Summarize(completed("ECI-SMP-300", domain.PlatformEbay, "10", "10", "10.01"))

		require.True(t, ok)
		assert.Equal(t, "10", p.AveragePrice.String())
	})

	t.Run("no priced observations omits the point", func(t *testing.T) {
		_, ok := agg.Summarize(completed("ECI-SMP-300", domain.PlatformEbay, "0", "0"))
		assert.False(t, ok)

		_, ok = agg.Summarize(domain.SkippedResult("ECI-SMP-300", domain.PlatformEbay, collectedAt, "collector not configured"))
		assert.False(t, ok)
	})

	t.Run("date is the UTC day the collection started", func(t *testing.T) {
		result := completed("ECI-SMP-300", domain.PlatformEbay, "10")
		result.StartTime = time.Date(2025, 3, 10, 0, 30, 0, 0, time.FixedZone("CET", 3600))

		p, ok := agg.Summarize(result)

		require.True(t, ok)
		assert.Equal(t, "2025-03-09", p.Date)
	})
}

func TestAggregator_MergeIntoHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("merging the same points twice is idempotent", func(t *testing.T) {
		agg, store := newAggregator(t)
		points := []domain.AggregatedPoint{
			point("2025-03-09", domain.PlatformEbay, "150", 10),
			point("2025-03-09", domain.PlatformAmazon, "160", 12),
		}

		_, err := agg.MergeIntoHistory(ctx, "ECI-SMP-300", points)
		require.NoError(t, err)
		first, err := os.ReadFile(store.HistoryPath("ECI-SMP-300"))
		require.NoError(t, err)

		h, err := agg.MergeIntoHistory(ctx, "ECI-SMP-300", points)
		require.NoError(t, err)
		second, err := os.ReadFile(store.HistoryPath("ECI-SMP-300"))
		require.NoError(t, err)

		assert.Equal(t, 2, h.Len())
		assert.JSONEq(t, string(first), string(second))
	})

	t.Run("a later point replaces the same date and platform", func(t *testing.T) {
		agg, store := newAggregator(t)

		_, err := agg.MergeIntoHistory(ctx, "ECI-SMP-300", []domain.AggregatedPoint{point("2025-03-09", domain.PlatformEbay, "150", 10)})
		require.NoError(t, err)
		_, err = agg.MergeIntoHistory(ctx, "ECI-SMP-300", []domain.AggregatedPoint{
			point("2025-03-09", domain.PlatformEbay, "155", 11),
			point("2025-03-16", domain.PlatformEbay, "149", 9),
		})
		require.NoError(t, err)

		h, err := store.Load(ctx, "ECI-SMP-300")
		require.NoError(t, err)
		assert.Equal(t, 2, h.Len())

		p, ok := h.Get(domain.HistoryKey{Date: "2025-03-09", Platform: domain.PlatformEbay})
		require.True(t, ok)
		assert.True(t, p.AveragePrice.Equal(decimal.NewFromInt(155)))
		assert.Equal(t, 11, p.SampleSize)
	})

	t.Run("corrupt history is a store failure", func(t *testing.T) {
		agg, store := newAggregator(t)
		path := store.HistoryPath("ECI-SMP-300")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := agg.MergeIntoHistory(ctx, "ECI-SMP-300", []domain.AggregatedPoint{point("2025-03-09", domain.PlatformEbay, "150", 10)})

		assert.ErrorIs(t, err, domain.ErrHistoryStore)
		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "{not json", string(data))
	})
}

func TestAggregator_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("no history reports no data", func(t *testing.T) {
		agg, store := newAggregator(t)

		bundle, ok, err := agg.Export(ctx, "ECI-SMP-300")

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, bundle)
		assert.NoFileExists(t, store.ExportPath("smp-300"))
	})

	t.Run("writes series per platform sorted by date", func(t *testing.T) {
		agg, store := newAggregator(t)
		_, err := agg.MergeIntoHistory(ctx, "ECI-SMP-300", []domain.AggregatedPoint{
			point("2025-03-16", domain.PlatformEbay, "151.5", 10),
			point("2025-03-09", domain.PlatformEbay, "150", 10),
			point("2025-03-09", domain.PlatformAmazon, "160", 12),
			point("2025-03-16", domain.PlatformAmazon, "162.25", 12),
		})
		require.NoError(t, err)

		bundle, ok, err := agg.Export(ctx, "ECI-SMP-300")

		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, bundle.Series, 2)

		assert.Equal(t, "Amazon", bundle.Series[0].Name)
		assert.Equal(t, "#FF9900", bundle.Series[0].Color)
		assert.Equal(t, []domain.SeriesPoint{
			{Date: "2025-03-09", Value: 160},
			{Date: "2025-03-16", Value: 162.25},
		}, bundle.Series[0].Data)

		assert.Equal(t, "eBay", bundle.Series[1].Name)
		assert.Equal(t, "#E53238", bundle.Series[1].Color)
		assert.Equal(t, "2025-03-09", bundle.Series[1].Data[0].Date)

		assert.Equal(t, "EC-Index Data Collection (Amazon, eBay)", bundle.Metadata.Source)
		assert.Equal(t, "2025-03-16", bundle.Metadata.LastUpdated)
		assert.Equal(t, "~200 products", bundle.Metadata.SampleSize)
		assert.Contains(t, bundle.Metadata.Methodology, "new smartphones under €300")

		data, err := os.ReadFile(store.ExportPath("smp-300"))
		require.NoError(t, err)

		var written domain.ExportBundle
		require.NoError(t, json.Unmarshal(data, &written))
		assert.Equal(t, *bundle, written)
	})
}

func TestAggregator_BuildBundle_GermanSampleSize(t *testing.T) {
	agg, _ := newAggregator(t)

	h := domain.NewHistory("ECI-ELC-VOL")
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		h.Upsert(point(day.AddDate(0, 0, i).Format(domain.DateLayout), domain.PlatformGeizhals, "99", 5))
	}

	bundle := agg.BuildBundle(h)

	assert.Equal(t, "~1.250 products", bundle.Metadata.SampleSize)
	assert.Equal(t, domain.DefaultMethodology, bundle.Metadata.Methodology)
	assert.Equal(t, "2025-01-25", bundle.Metadata.LastUpdated)
	require.Len(t, bundle.Series, 1)
	assert.Equal(t, "Geizhals", bundle.Series[0].Name)
	assert.Len(t, bundle.Series[0].Data, 25)
}
