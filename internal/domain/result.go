package domain

import "time"

// Outcome tells how a collector invocation ended
type Outcome string

const (
	// OutcomeCompleted means the collector ran its queries, possibly with errors
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkipped means the collector was never attempted
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the collector broke down and produced no data
	OutcomeFailed Outcome = "failed"
)

// CollectionResult is one platform's outcome for one benchmark run
type CollectionResult struct {
	Benchmark     string             `json:"benchmark"`
	Platform      Platform           `json:"platform"`
	Outcome       Outcome            `json:"outcome"`
	StartTime     time.Time          `json:"startTime"`
	EndTime       time.Time          `json:"endTime"`
	TotalProducts int                `json:"totalProducts"`
	ValidProducts int                `json:"validProducts"`
	Errors        []string           `json:"errors"`
	Observations  []PriceObservation `json:"dataPoints"`
}

// NewCollectionResult builds a completed result and derives its counters
func NewCollectionResult(benchmark string, platform Platform, start, end time.Time, observations []PriceObservation, errs []string) *CollectionResult {
	valid := 0
	for _, o := range observations {
		if o.Priced() {
			valid++
		}
	}
	if errs == nil {
		errs = []string{}
	}

	return &CollectionResult{
		Benchmark:     benchmark,
		Platform:      platform,
		Outcome:       OutcomeCompleted,
		StartTime:     start,
		EndTime:       end,
		TotalProducts: len(observations),
		ValidProducts: valid,
		Errors:        errs,
		Observations:  observations,
	}
}

// SkippedResult records a collector that was not attempted
func SkippedResult(benchmark string, platform Platform, at time.Time, reason string) *CollectionResult {
	return &CollectionResult{
		Benchmark:    benchmark,
		Platform:     platform,
		Outcome:      OutcomeSkipped,
		StartTime:    at,
		EndTime:      at,
		Errors:       []string{reason},
		Observations: []PriceObservation{},
	}
}

// FailedResult records a collector that broke down
func FailedResult(benchmark string, platform Platform, start, end time.Time, reason string) *CollectionResult {
	return &CollectionResult{
		Benchmark:    benchmark,
		Platform:     platform,
		Outcome:      OutcomeFailed,
		StartTime:    start,
		EndTime:      end,
		Errors:       []string{reason},
		Observations: []PriceObservation{},
	}
}

// Skipped reports whether the collector was never attempted
func (r *CollectionResult) Skipped() bool {
	return r.Outcome == OutcomeSkipped
}

// Duration returns the wall-clock time spent collecting
func (r *CollectionResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
