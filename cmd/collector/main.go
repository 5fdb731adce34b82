package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/app"
	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

func main() {
	all := flag.Bool("all", false, "collect every configured benchmark (default)")
	benchmark := flag.String("benchmark", "", "collect a single benchmark by code")
	exportOnly := flag.Bool("export", false, "regenerate export bundles from stored history without collecting")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	code := run(ctx, pipeline, *all, *benchmark, *exportOnly, logger)
	pipeline.Close()
	os.Exit(code)
}

func run(ctx context.Context, p *app.Pipeline, all bool, benchmark string, exportOnly bool, logger *slog.Logger) int {
	start := time.Now()

	switch {
	case exportOnly:
		n, err := p.Runs.ExportAll(ctx)
		logger.Info("export complete", "bundles", n, "duration", time.Since(start).String())
		if err != nil {
			logger.Error("export failed", "error", err)
			return 1
		}
		return 0

	case benchmark != "" && !all:
		summary, err := p.Runs.RunBenchmark(ctx, benchmark, "cli")
		if summary != nil {
			report(logger, []*domain.RunSummary{summary}, start)
		}
		if err != nil {
			logger.Error("collection failed", "benchmark", benchmark, "error", err)
			return 1
		}
		return 0

	default:
		summaries, err := p.Runs.RunAll(ctx, "cli")
		report(logger, summaries, start)
		if err != nil {
			logger.Error("collection finished with errors", "error", err)
			return 1
		}
		return 0
	}
}

func report(logger *slog.Logger, summaries []*domain.RunSummary, start time.Time) {
	var products, errs, exported int
	for _, s := range summaries {
		if s == nil {
			continue
		}
		products += s.ValidProducts
		errs += s.ErrorCount
		if s.Exported {
			exported++
		}
		logger.Info("benchmark summary",
			"benchmark", s.Benchmark,
			"run_id", s.RunID,
			"points", len(s.Points),
			"valid_products", s.ValidProducts,
			"errors", s.ErrorCount,
			"exported", s.Exported,
		)
	}

	logger.Info("collection summary",
		"benchmarks", len(summaries),
		"valid_products", products,
		"errors", errs,
		"exported", exported,
		"duration", time.Since(start).String(),
	)
}
