package app_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/app"
	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Collector: config.CollectorConfig{
			RequestsPerSecond: 1,
			MaxRetries:        1,
			Timeout:           time.Second,
			UserAgent:         config.DefaultUserAgent,
		},
		Storage: config.StorageConfig{
			RawDir:         filepath.Join(dir, "raw"),
			ProcessedDir:   filepath.Join(dir, "processed"),
			ExportDir:      filepath.Join(dir, "export"),
			HistoryBackend: "file",
		},
		Ebay:       config.EbayConfig{Marketplace: "EBAY_DE", BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 1},
		Amazon:     config.AmazonConfig{Mode: "api"},
		TokenCache: config.TokenCacheConfig{Backend: "memory"},
		Logging:    config.LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestBuild_FileBackend(t *testing.T) {
	p, err := app.Build(context.Background(), testConfig(t), slog.Default())
	require.NoError(t, err)
	defer p.Close()

	var codes []string
	for _, b := range domain.DefaultBenchmarks() {
		codes = append(codes, b.Code)
	}
	assert.Equal(t, codes, p.Runs.Benchmarks())
	assert.Same(t, p.Files, p.History)
	assert.NotNil(t, p.Metrics.Handler())
}

func TestBuild_ScrapeMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Amazon.Mode = "scrape"
	cfg.Amazon.MarketplaceURL = "http://127.0.0.1:1"

	p, err := app.Build(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	p.Close()
	p.Close()
}

func TestBuild_UnknownHistoryBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.HistoryBackend = "sqlite"

	_, err := app.Build(context.Background(), cfg, slog.Default())
	assert.ErrorContains(t, err, "unknown history backend")
}

func TestBuild_MissingBenchmarksFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.BenchmarksFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := app.Build(context.Background(), cfg, slog.Default())
	assert.Error(t, err)
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()

	debug := app.NewLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	assert.True(t, debug.Enabled(ctx, slog.LevelDebug))

	warn := app.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	assert.False(t, warn.Enabled(ctx, slog.LevelInfo))
	assert.True(t, warn.Enabled(ctx, slog.LevelWarn))

	fallback := app.NewLogger(config.LoggingConfig{})
	assert.True(t, fallback.Enabled(ctx, slog.LevelInfo))
	assert.False(t, fallback.Enabled(ctx, slog.LevelDebug))
}
