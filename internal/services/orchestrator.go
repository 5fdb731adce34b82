package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// Orchestrator implements the ports.Orchestrator interface
type Orchestrator struct {
	collectors map[domain.Platform]ports.Collector
	metrics    ports.MetricsService
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator over the given collectors.
// metrics may be nil.
func NewOrchestrator(collectors []ports.Collector, metrics ports.MetricsService, logger *slog.Logger) *Orchestrator {
	byPlatform := make(map[domain.Platform]ports.Collector, len(collectors))
	for _, c := range collectors {
		byPlatform[c.Platform()] = c
	}

	return &Orchestrator{
		collectors: byPlatform,
		metrics:    metrics,
		logger:     logger.With("component", "orchestrator"),
		now:        time.Now,
	}
}

// Platforms returns the platforms that have a registered collector
func (o *Orchestrator) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(o.collectors))
	for _, p := range domain.AllPlatforms() {
		if _, ok := o.collectors[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// CollectBenchmark runs the collectors of all configured platforms concurrently.
// Results are returned in the order of cfg.Platforms.
func (o *Orchestrator) CollectBenchmark(ctx context.Context, cfg domain.BenchmarkConfig) []*domain.CollectionResult {
	results := make([]*domain.CollectionResult, len(cfg.Platforms))

	o.logger.Info("collecting benchmark",
		"benchmark", cfg.Code,
		"platforms", len(cfg.Platforms),
		"queries", len(cfg.SearchQueries),
	)

	var g errgroup.Group
	for i, platform := range cfg.Platforms {
		c, ok := o.collectors[platform]
		if !ok {
			o.logger.Warn("no collector for platform", "benchmark", cfg.Code, "platform", platform)
			results[i] = domain.SkippedResult(cfg.Code, platform, o.now(), fmt.Sprintf("%s: %s", domain.ErrNoCollector, platform))
			continue
		}

		g.Go(func() error {
			results[i] = o.collect(ctx, c, cfg)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if o.metrics != nil {
			o.metrics.RecordCollection(r)
		}
		o.logger.Info("platform collected",
			"benchmark", cfg.Code,
			"platform", r.Platform,
			"outcome", r.Outcome,
			"valid_products", r.ValidProducts,
			"errors", len(r.Errors),
			"duration_ms", r.Duration().Milliseconds(),
		)
	}

	return results
}

func (o *Orchestrator) collect(ctx context.Context, c ports.Collector, cfg domain.BenchmarkConfig) (result *domain.CollectionResult) {
	start := o.now()

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("collector panicked",
				"benchmark", cfg.Code,
				"platform", c.Platform(),
				"panic", rec,
			)
			result = domain.FailedResult(cfg.Code, c.Platform(), start, o.now(), fmt.Sprintf("collector panic: %v", rec))
		}
	}()

	result = c.Collect(ctx, cfg)
	if result == nil {
		return domain.FailedResult(cfg.Code, c.Platform(), start, o.now(), "collector returned no result")
	}
	return result
}

// Ensure Orchestrator implements ports.Orchestrator
var _ ports.Orchestrator = (*Orchestrator)(nil)
