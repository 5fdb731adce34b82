package domain

import "time"

// Metrics represents operational metrics of the collector service
type Metrics struct {
	Uptime           float64    `json:"uptime_seconds"`
	Benchmarks       int        `json:"benchmarks"`
	LastRunTime      *time.Time `json:"last_run_time,omitempty"`
	LastRunDuration  float64    `json:"last_run_duration_ms"`
	LastHeartbeat    *time.Time `json:"last_heartbeat,omitempty"`
	RunSuccessCount  int64      `json:"run_success_count"`
	RunErrorCount    int64      `json:"run_error_count"`
	ObservationsSeen int64      `json:"observations_collected"`
	HistoryStatus    string     `json:"history_status"`
}

// RunSummary reports what one benchmark run produced
type RunSummary struct {
	RunID         string              `json:"run_id"`
	Benchmark     string              `json:"benchmark"`
	Results       []*CollectionResult `json:"-"`
	Points        []AggregatedPoint   `json:"points"`
	ValidProducts int                 `json:"valid_products"`
	ErrorCount    int                 `json:"error_count"`
	Exported      bool                `json:"exported"`
	Duration      time.Duration       `json:"duration"`
}
