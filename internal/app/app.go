// Package app assembles the collection pipeline shared by the collector and
// scheduler commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/filestore"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/postgres"
	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/observability"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/internal/services"
)

// Pipeline holds the wired components
type Pipeline struct {
	Config         *config.Config
	Benchmarks     *domain.BenchmarkSet
	Files          *filestore.Store
	History        ports.HistoryStore
	Metrics        *observability.Metrics
	MetricsService *services.MetricsService
	Runs           *services.RunService

	closers []func()
	logger  *slog.Logger
}

// NewLogger builds the process logger from cfg
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Build wires storage, collectors and services from cfg. The returned
// pipeline must be closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	logger.Info("building pipeline",
		"history_backend", cfg.Storage.HistoryBackend,
		"amazon_mode", cfg.Amazon.Mode,
		"browser", cfg.Scraper.UseBrowser,
	)

	p := &Pipeline{Config: cfg, logger: logger}

	// 1. Benchmarks
	benchmarks, err := config.LoadBenchmarks(cfg.Storage.BenchmarksFile)
	if err != nil {
		return nil, err
	}
	p.Benchmarks = benchmarks

	// 2. Storage
	p.Files = filestore.New(
		cfg.Storage.RawDir,
		cfg.Storage.ProcessedDir,
		cfg.Storage.ExportDir,
		filestore.WithLogger(logger),
	)

	history, err := p.buildHistory(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.History = history

	// 3. Metrics
	p.Metrics = observability.NewMetrics("")
	p.MetricsService = services.NewMetricsService(history, benchmarks.Len(), p.Metrics, logger)

	// 4. Collectors
	collectors, err := p.buildCollectors(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}

	// 5. Services
	orchestrator := services.NewOrchestrator(collectors, p.MetricsService, logger)
	aggregator := services.NewAggregator(history, p.Files, benchmarks, logger)
	p.Runs = services.NewRunService(benchmarks, orchestrator, aggregator, p.MetricsService, logger)

	logger.Info("pipeline built",
		"benchmarks", benchmarks.Codes(),
		"platforms", orchestrator.Platforms(),
	)

	return p, nil
}

func (p *Pipeline) buildHistory(ctx context.Context) (ports.HistoryStore, error) {
	switch p.Config.Storage.HistoryBackend {
	case "postgres":
		db, err := postgres.NewDB(ctx, p.Config.Database, p.logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, db.Close)

		if err := db.Migrate(); err != nil {
			return nil, err
		}
		return postgres.NewHistoryRepository(db), nil
	case "file", "":
		return p.Files, nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s", p.Config.Storage.HistoryBackend)
	}
}

// Close releases browser, cache and database resources in reverse order
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}
