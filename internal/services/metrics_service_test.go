package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/filestore"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/services"
)

type pingFailStore struct {
	*filestore.Store
}

func (pingFailStore) Ping(ctx context.Context) error {
	return domain.ErrHistoryStore
}

type recordedRun struct {
	benchmark string
	success   bool
}

type fakeRecorder struct {
	runs        []recordedRun
	collections int
	heartbeats  []time.Time
}

func (r *fakeRecorder) RecordCollection(result *domain.CollectionResult) {
	r.collections++
}

func (r *fakeRecorder) RecordRun(benchmark, trigger string, success bool, duration time.Duration, at time.Time) {
	r.runs = append(r.runs, recordedRun{benchmark: benchmark, success: success})
}

func (r *fakeRecorder) RecordHeartbeat(at time.Time) {
	r.heartbeats = append(r.heartbeats, at)
}

func TestMetricsService_GetMetrics(t *testing.T) {
	dir := t.TempDir()
	store := filestore.New(filepath.Join(dir, "raw"), filepath.Join(dir, "processed"), filepath.Join(dir, "export"))
	recorder := &fakeRecorder{}

	m := services.NewMetricsService(store, 3, recorder, newTestLogger())

	m.RecordRunSuccess("ECI-SMP-300", "cron", 2*time.Second)
	m.RecordRunError("ECI-SUP-VIT", "cron", 500*time.Millisecond)
	m.RecordCollection(completed("ECI-SMP-300", domain.PlatformEbay, "10", "0", "20"))
	beat := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	m.RecordHeartbeat(beat)

	metrics, err := m.GetMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.Benchmarks)
	assert.Equal(t, int64(1), metrics.RunSuccessCount)
	assert.Equal(t, int64(1), metrics.RunErrorCount)
	assert.Equal(t, int64(2), metrics.ObservationsSeen)
	assert.Equal(t, float64(500), metrics.LastRunDuration)
	assert.Equal(t, "healthy", metrics.HistoryStatus)
	require.NotNil(t, metrics.LastHeartbeat)
	assert.Equal(t, beat, *metrics.LastHeartbeat)
	assert.NotNil(t, m.GetLastRunTime())

	assert.Equal(t, []recordedRun{{"ECI-SMP-300", true}, {"ECI-SUP-VIT", false}}, recorder.runs)
	assert.Equal(t, 1, recorder.collections)
	assert.Len(t, recorder.heartbeats, 1)
}

func TestMetricsService_UnhealthyHistory(t *testing.T) {
	dir := t.TempDir()
	store := pingFailStore{filestore.New(dir, dir, dir)}

	m := services.NewMetricsService(store, 1, nil, newTestLogger())
	m.RecordHeartbeat(time.Now())

	metrics, err := m.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", metrics.HistoryStatus)
	assert.Nil(t, m.GetLastRunTime())
	assert.NotNil(t, m.GetLastHeartbeat())
}
