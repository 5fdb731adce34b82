package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// productsPerPoint estimates how many listings stand behind one history point
const productsPerPoint = 50

// Aggregator implements the ports.Aggregator interface
type Aggregator struct {
	history    ports.HistoryStore
	exports    ports.ExportWriter
	benchmarks *domain.BenchmarkSet
	printer    *message.Printer
	logger     *slog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(
	history ports.HistoryStore,
	exports ports.ExportWriter,
	benchmarks *domain.BenchmarkSet,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		history:    history,
		exports:    exports,
		benchmarks: benchmarks,
		printer:    message.NewPrinter(language.German),
		logger:     logger.With("component", "aggregator"),
	}
}

// Summarize computes the point of one result from its priced observations.
// It reports false when the result holds no positive price.
func (a *Aggregator) Summarize(result *domain.CollectionResult) (domain.AggregatedPoint, bool) {
	if result == nil {
		return domain.AggregatedPoint{}, false
	}

	stats, ok := domain.ComputeStats(domain.PricedValues(result.Observations))
	if !ok {
		return domain.AggregatedPoint{}, false
	}

	return domain.AggregatedPoint{
		Date:         result.StartTime.UTC().Format(domain.DateLayout),
		Platform:     result.Platform,
		Category:     result.Benchmark,
		AveragePrice: stats.Average,
		MedianPrice:  stats.Median,
		MinPrice:     stats.Min,
		MaxPrice:     stats.Max,
		SampleSize:   stats.Count,
	}, true
}

// MergeIntoHistory upserts points into the stored history and writes it back
func (a *Aggregator) MergeIntoHistory(ctx context.Context, benchmark string, points []domain.AggregatedPoint) (*domain.History, error) {
	history, err := a.history.Load(ctx, benchmark)
	switch {
	case errors.Is(err, domain.ErrNoHistory):
		history = domain.NewHistory(benchmark)
	case err != nil:
		a.logger.Error("failed to load history", "benchmark", benchmark, "error", err)
		return nil, err
	}

	replaced := 0
	for _, p := range points {
		if history.Upsert(p) {
			replaced++
		}
	}

	if err := a.history.Save(ctx, history); err != nil {
		a.logger.Error("failed to save history", "benchmark", benchmark, "points", len(points), "error", err)
		return nil, err
	}

	a.logger.Info("history updated",
		"benchmark", benchmark,
		"added", len(points)-replaced,
		"replaced", replaced,
		"total", history.Len(),
	)

	return history, nil
}

// Export builds the chart bundle of a benchmark and writes it.
// It reports false, without error, when no history exists.
func (a *Aggregator) Export(ctx context.Context, benchmark string) (*domain.ExportBundle, bool, error) {
	history, err := a.history.Load(ctx, benchmark)
	if errors.Is(err, domain.ErrNoHistory) {
		a.logger.Warn("no history to export", "benchmark", benchmark)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if history.Empty() {
		a.logger.Warn("no history to export", "benchmark", benchmark)
		return nil, false, nil
	}

	bundle := a.BuildBundle(history)

	path, err := a.exports.WriteExport(ctx, a.exportName(benchmark), bundle)
	if err != nil {
		a.logger.Error("failed to write export", "benchmark", benchmark, "error", err)
		return nil, false, err
	}

	a.logger.Info("benchmark exported", "benchmark", benchmark, "path", path, "series", len(bundle.Series))
	return bundle, true, nil
}

// BuildBundle turns a history into chart series plus metadata
func (a *Aggregator) BuildBundle(history *domain.History) *domain.ExportBundle {
	var (
		series []domain.ExportSeries
		names  []string
		points int
	)

	for _, platform := range history.Platforms() {
		data := history.Series(platform)
		if len(data) == 0 {
			continue
		}

		s := domain.ExportSeries{
			Name:  platform.DisplayName(),
			Color: platform.Color(),
			Data:  make([]domain.SeriesPoint, len(data)),
		}
		for i, p := range data {
			s.Data[i] = domain.SeriesPoint{Date: p.Date, Value: p.AveragePrice.InexactFloat64()}
		}

		series = append(series, s)
		names = append(names, s.Name)
		points += len(data)
	}

	if series == nil {
		series = []domain.ExportSeries{}
	}

	return &domain.ExportBundle{
		Series: series,
		Metadata: domain.ExportMetadata{
			Source:      fmt.Sprintf("EC-Index Data Collection (%s)", strings.Join(names, ", ")),
			LastUpdated: history.LatestDate(),
			SampleSize:  a.printer.Sprintf("~%d products", points*productsPerPoint),
			Methodology: a.methodology(history.Benchmark),
		},
	}
}

func (a *Aggregator) exportName(benchmark string) string {
	if cfg, err := a.benchmarks.Get(benchmark); err == nil {
		return cfg.ExportFileName()
	}
	return domain.BenchmarkConfig{Code: benchmark}.ExportFileName()
}

func (a *Aggregator) methodology(benchmark string) string {
	if cfg, err := a.benchmarks.Get(benchmark); err == nil {
		return cfg.MethodologyText()
	}
	return domain.DefaultMethodology
}

// Ensure Aggregator implements ports.Aggregator
var _ ports.Aggregator = (*Aggregator)(nil)
