package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/postgres"
	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// openTestDB connects to TEST_DATABASE_URL and skips the test when it is unset
func openTestDB(t *testing.T) *postgres.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, config.DatabaseConfig{
		URL:          url,
		MaxOpenConns: 4,
		MaxIdleConns: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate())
	return db
}

func point(date string, platform domain.Platform, median string) domain.AggregatedPoint {
	price := decimal.RequireFromString(median)
	return domain.AggregatedPoint{
		Date:         date,
		Platform:     platform,
		Category:     "smartphone",
		AveragePrice: price,
		MedianPrice:  price,
		MinPrice:     price.Sub(decimal.NewFromInt(10)),
		MaxPrice:     price.Add(decimal.NewFromInt(10)),
		SampleSize:   5,
	}
}

func TestHistoryRepository_SaveAndLoad(t *testing.T) {
	repo := postgres.NewHistoryRepository(openTestDB(t))
	ctx := context.Background()
	benchmark := "ECI-TEST-" + time.Now().UTC().Format("150405.000000")

	first := domain.NewHistory(benchmark)
	first.Upsert(point("2026-03-01", domain.PlatformEbay, "199.90"))
	first.Upsert(point("2026-03-01", domain.PlatformGeizhals, "189.00"))
	require.NoError(t, repo.Save(ctx, first))

	loaded, err := repo.Load(ctx, benchmark)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())

	got, ok := loaded.Get(domain.HistoryKey{Date: "2026-03-01", Platform: domain.PlatformEbay})
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("199.90").Equal(got.MedianPrice))
	assert.Equal(t, 5, got.SampleSize)

	second := domain.NewHistory(benchmark)
	second.Upsert(point("2026-03-02", domain.PlatformEbay, "205.00"))
	require.NoError(t, repo.Save(ctx, second))

	loaded, err = repo.Load(ctx, benchmark)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, "2026-03-02", loaded.LatestDate())

	require.NoError(t, repo.Save(ctx, domain.NewHistory(benchmark)))
}

func TestHistoryRepository_LoadUnknownBenchmark(t *testing.T) {
	repo := postgres.NewHistoryRepository(openTestDB(t))

	_, err := repo.Load(context.Background(), "ECI-UNKNOWN")
	assert.ErrorIs(t, err, domain.ErrNoHistory)
}
