package ports

import (
	"context"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// Orchestrator collects one benchmark from all of its platforms
type Orchestrator interface {
	// CollectBenchmark returns one result per configured platform, in order
	CollectBenchmark(ctx context.Context, cfg domain.BenchmarkConfig) []*domain.CollectionResult
}

// Aggregator folds collection results into history and exports
type Aggregator interface {
	// Summarize computes the point of one result, false when nothing is priced
	Summarize(result *domain.CollectionResult) (domain.AggregatedPoint, bool)

	// MergeIntoHistory upserts points and writes the history back
	MergeIntoHistory(ctx context.Context, benchmark string, points []domain.AggregatedPoint) (*domain.History, error)

	// Export builds and writes the bundle, false when there is no history
	Export(ctx context.Context, benchmark string) (*domain.ExportBundle, bool, error)
}

// RunService drives complete collection runs
type RunService interface {
	// RunAll collects, merges and exports every benchmark
	RunAll(ctx context.Context, trigger string) ([]*domain.RunSummary, error)

	// RunBenchmark collects, merges and exports one benchmark
	RunBenchmark(ctx context.Context, code, trigger string) (*domain.RunSummary, error)

	// ExportAll rebuilds export bundles from stored history only
	ExportAll(ctx context.Context) (int, error)

	// Benchmarks lists the configured benchmark codes
	Benchmarks() []string
}

// MetricsService defines the contract for operational metrics
type MetricsService interface {
	// GetMetrics returns current operational metrics
	GetMetrics(ctx context.Context) (*domain.Metrics, error)

	// RecordRunSuccess records a successful benchmark run
	RecordRunSuccess(benchmark, trigger string, duration time.Duration)

	// RecordRunError records a failed benchmark run
	RecordRunError(benchmark, trigger string, duration time.Duration)

	// RecordCollection records one collector result
	RecordCollection(result *domain.CollectionResult)

	// RecordHeartbeat records a scheduler liveness tick
	RecordHeartbeat(at time.Time)

	// GetLastRunTime returns the time of the last run
	GetLastRunTime() *time.Time

	// GetLastHeartbeat returns the time of the last heartbeat
	GetLastHeartbeat() *time.Time
}
