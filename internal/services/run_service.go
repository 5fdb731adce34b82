package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// RunService implements the ports.RunService interface
type RunService struct {
	benchmarks   *domain.BenchmarkSet
	orchestrator ports.Orchestrator
	aggregator   ports.Aggregator
	metrics      ports.MetricsService
	logger       *slog.Logger
	newRunID     func() string

	locks map[string]*sync.Mutex
}

// NewRunService creates a new run service
func NewRunService(
	benchmarks *domain.BenchmarkSet,
	orchestrator ports.Orchestrator,
	aggregator ports.Aggregator,
	metrics ports.MetricsService,
	logger *slog.Logger,
) *RunService {
	locks := make(map[string]*sync.Mutex, benchmarks.Len())
	for _, code := range benchmarks.Codes() {
		locks[code] = &sync.Mutex{}
	}

	return &RunService{
		benchmarks:   benchmarks,
		orchestrator: orchestrator,
		aggregator:   aggregator,
		metrics:      metrics,
		logger:       logger.With("component", "run_service"),
		newRunID:     uuid.NewString,
		locks:        locks,
	}
}

// Benchmarks lists the configured benchmark codes
func (s *RunService) Benchmarks() []string {
	return s.benchmarks.Codes()
}

// RunAll runs every benchmark in configuration order. A failing benchmark
// does not stop the following ones; their errors are joined.
func (s *RunService) RunAll(ctx context.Context, trigger string) ([]*domain.RunSummary, error) {
	start := time.Now()
	codes := s.benchmarks.Codes()

	s.logger.Info("collection run started", "trigger", trigger, "benchmarks", len(codes))

	var (
		summaries []*domain.RunSummary
		errs      []error
	)
	for i, code := range codes {
		if ctx.Err() != nil {
			s.logger.Warn("collection run cancelled", "trigger", trigger, "skipped_benchmarks", len(codes)-i)
			errs = append(errs, fmt.Errorf("%w: skipped %d of %d benchmarks", domain.ErrRunCancelled, len(codes)-i, len(codes)))
			break
		}

		summary, err := s.RunBenchmark(ctx, code, trigger)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
		}
	}

	products, failures := 0, 0
	for _, sum := range summaries {
		products += sum.ValidProducts
		failures += sum.ErrorCount
	}

	s.logger.Info("collection run complete",
		"trigger", trigger,
		"benchmarks", len(summaries),
		"total_products", products,
		"total_errors", failures,
		"failed_benchmarks", len(errs),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return summaries, errors.Join(errs...)
}

// RunBenchmark collects one benchmark, merges its points into the history
// and rewrites its export. Collected data is merged even when ctx has been
// cancelled in the meantime.
func (s *RunService) RunBenchmark(ctx context.Context, code, trigger string) (*domain.RunSummary, error) {
	cfg, err := s.benchmarks.Get(code)
	if err != nil {
		return nil, err
	}

	lock := s.locks[code]
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunInProgress, code)
	}
	defer lock.Unlock()

	start := time.Now()
	summary := &domain.RunSummary{
		RunID:     s.newRunID(),
		Benchmark: code,
	}
	logger := s.logger.With("run_id", summary.RunID, "benchmark", code, "trigger", trigger)
	logger.Info("benchmark run started", "platforms", len(cfg.Platforms))

	summary.Results = s.orchestrator.CollectBenchmark(ctx, cfg)
	for _, r := range summary.Results {
		summary.ValidProducts += r.ValidProducts
		summary.ErrorCount += len(r.Errors)
		if p, ok := s.aggregator.Summarize(r); ok {
			summary.Points = append(summary.Points, p)
		} else {
			logger.Debug("no priced observations, point omitted", "platform", r.Platform, "outcome", r.Outcome)
		}
	}

	persistCtx := context.WithoutCancel(ctx)

	if len(summary.Points) > 0 {
		if _, err := s.aggregator.MergeIntoHistory(persistCtx, code, summary.Points); err != nil {
			return s.fail(logger, summary, trigger, start, fmt.Errorf("merge history: %w", err))
		}
	}

	_, exported, err := s.aggregator.Export(persistCtx, code)
	if err != nil {
		return s.fail(logger, summary, trigger, start, fmt.Errorf("export: %w", err))
	}
	summary.Exported = exported
	summary.Duration = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordRunSuccess(code, trigger, summary.Duration)
	}

	logger.Info("benchmark run complete",
		"points", len(summary.Points),
		"valid_products", summary.ValidProducts,
		"errors", summary.ErrorCount,
		"exported", summary.Exported,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, nil
}

func (s *RunService) fail(logger *slog.Logger, summary *domain.RunSummary, trigger string, start time.Time, err error) (*domain.RunSummary, error) {
	summary.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordRunError(summary.Benchmark, trigger, summary.Duration)
	}
	logger.Error("benchmark run failed", "error", err, "duration_ms", summary.Duration.Milliseconds())
	return summary, err
}

// ExportAll rebuilds every export bundle from stored history only
func (s *RunService) ExportAll(ctx context.Context) (int, error) {
	var (
		exported int
		errs     []error
	)

	for _, code := range s.benchmarks.Codes() {
		_, ok, err := s.aggregator.Export(ctx, code)
		switch {
		case err != nil:
			s.logger.Error("export failed", "benchmark", code, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
		case ok:
			exported++
		default:
			s.logger.Warn("no data to export", "benchmark", code)
		}
	}

	return exported, errors.Join(errs...)
}

// Ensure RunService implements ports.RunService
var _ ports.RunService = (*RunService)(nil)
