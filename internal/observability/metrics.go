// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

const defaultNamespace = "ec_index"

// Metrics holds all Prometheus metrics of the collector
type Metrics struct {
	registry *prometheus.Registry

	// Transport metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RetriesTotal    *prometheus.CounterVec

	// Collection metrics
	CollectionsTotal  *prometheus.CounterVec
	ObservationsTotal *prometheus.CounterVec
	QueryErrorsTotal  *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	LastHeartbeat     prometheus.Gauge
}

// NewMetrics creates a Metrics instance on its own registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Total number of outbound requests by client and status",
		}, []string{"client", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Outbound request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"client"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Total number of retried requests by client",
		}, []string{"client"}),

		CollectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "collections_total",
			Help:      "Total number of collector invocations by outcome",
		}, []string{"platform", "outcome"}),
		ObservationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "observations_total",
			Help:      "Total number of priced observations collected",
		}, []string{"platform"}),
		QueryErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "errors_total",
			Help:      "Total number of errors reported in collection results",
		}, []string{"platform"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of benchmark runs by trigger and status",
		}, []string{"benchmark", "trigger", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Benchmark run duration in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"benchmark"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful benchmark run",
		}),
		LastHeartbeat: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_heartbeat_timestamp",
			Help:      "Unix timestamp of the last scheduler heartbeat",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one outbound request. Status 0 means no response.
func (m *Metrics) ObserveRequest(client string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(client, label).Inc()
	m.RequestDuration.WithLabelValues(client).Observe(duration.Seconds())
}

// ObserveRetry records one retried request
func (m *Metrics) ObserveRetry(client string) {
	m.RetriesTotal.WithLabelValues(client).Inc()
}

// RecordCollection records one collector result
func (m *Metrics) RecordCollection(result *domain.CollectionResult) {
	platform := string(result.Platform)
	m.CollectionsTotal.WithLabelValues(platform, string(result.Outcome)).Inc()
	m.ObservationsTotal.WithLabelValues(platform).Add(float64(result.ValidProducts))
	if n := len(result.Errors); n > 0 && !result.Skipped() {
		m.QueryErrorsTotal.WithLabelValues(platform).Add(float64(n))
	}
}

// RecordRun records a finished benchmark run
func (m *Metrics) RecordRun(benchmark, trigger string, success bool, duration time.Duration, at time.Time) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(benchmark, trigger, status).Inc()
	m.RunDuration.WithLabelValues(benchmark).Observe(duration.Seconds())
	if success {
		m.LastSuccessfulRun.Set(float64(at.Unix()))
	}
}

// RecordHeartbeat records a scheduler liveness tick
func (m *Metrics) RecordHeartbeat(at time.Time) {
	m.LastHeartbeat.Set(float64(at.Unix()))
}
