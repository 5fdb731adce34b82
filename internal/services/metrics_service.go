package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// MetricsRecorder exports counters to a monitoring backend
type MetricsRecorder interface {
	RecordCollection(result *domain.CollectionResult)
	RecordRun(benchmark, trigger string, success bool, duration time.Duration, at time.Time)
	RecordHeartbeat(at time.Time)
}

// MetricsService implements the ports.MetricsService interface
type MetricsService struct {
	history    ports.HistoryStore
	benchmarks int
	recorder   MetricsRecorder
	startTime  time.Time
	logger     *slog.Logger

	mu               sync.RWMutex
	lastRunTime      *time.Time
	lastRunDuration  time.Duration
	lastHeartbeat    *time.Time
	runSuccessCount  int64
	runErrorCount    int64
	observationsSeen int64
}

// NewMetricsService creates a new metrics service. recorder may be nil.
func NewMetricsService(
	history ports.HistoryStore,
	benchmarks int,
	recorder MetricsRecorder,
	logger *slog.Logger,
) *MetricsService {
	return &MetricsService{
		history:    history,
		benchmarks: benchmarks,
		recorder:   recorder,
		startTime:  time.Now(),
		logger:     logger.With("component", "metrics_service"),
	}
}

// GetMetrics returns current operational metrics
func (m *MetricsService) GetMetrics(ctx context.Context) (*domain.Metrics, error) {
	m.mu.RLock()
	lastRunTime := m.lastRunTime
	lastRunDuration := m.lastRunDuration
	lastHeartbeat := m.lastHeartbeat
	runSuccessCount := m.runSuccessCount
	runErrorCount := m.runErrorCount
	observationsSeen := m.observationsSeen
	m.mu.RUnlock()

	historyStatus := "healthy"
	if err := m.history.Ping(ctx); err != nil {
		m.logger.Error("history store unreachable", "error", err)
		historyStatus = "unhealthy"
	}

	return &domain.Metrics{
		Uptime:           time.Since(m.startTime).Seconds(),
		Benchmarks:       m.benchmarks,
		LastRunTime:      lastRunTime,
		LastRunDuration:  float64(lastRunDuration.Milliseconds()),
		LastHeartbeat:    lastHeartbeat,
		RunSuccessCount:  runSuccessCount,
		RunErrorCount:    runErrorCount,
		ObservationsSeen: observationsSeen,
		HistoryStatus:    historyStatus,
	}, nil
}

// RecordRunSuccess records a successful benchmark run
func (m *MetricsService) RecordRunSuccess(benchmark, trigger string, duration time.Duration) {
	now := m.recordRun(duration, true)
	if m.recorder != nil {
		m.recorder.RecordRun(benchmark, trigger, true, duration, now)
	}
}

// RecordRunError records a failed benchmark run
func (m *MetricsService) RecordRunError(benchmark, trigger string, duration time.Duration) {
	now := m.recordRun(duration, false)
	if m.recorder != nil {
		m.recorder.RecordRun(benchmark, trigger, false, duration, now)
	}
}

func (m *MetricsService) recordRun(duration time.Duration, success bool) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.lastRunTime = &now
	m.lastRunDuration = duration
	if success {
		m.runSuccessCount++
	} else {
		m.runErrorCount++
	}
	return now
}

// RecordCollection records one collector result
func (m *MetricsService) RecordCollection(result *domain.CollectionResult) {
	if result == nil {
		return
	}

	m.mu.Lock()
	m.observationsSeen += int64(result.ValidProducts)
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordCollection(result)
	}
}

// RecordHeartbeat records a scheduler liveness tick
func (m *MetricsService) RecordHeartbeat(at time.Time) {
	m.mu.Lock()
	m.lastHeartbeat = &at
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordHeartbeat(at)
	}
}

// GetLastRunTime returns the time of the last run
func (m *MetricsService) GetLastRunTime() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRunTime
}

// GetLastHeartbeat returns the time of the last heartbeat
func (m *MetricsService) GetLastHeartbeat() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeartbeat
}

// Ensure MetricsService implements ports.MetricsService
var _ ports.MetricsService = (*MetricsService)(nil)
