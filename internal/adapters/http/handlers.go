package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// Trigger starts background jobs on demand
type Trigger interface {
	TriggerAll() error
	TriggerBenchmark(code string) error
	TriggerExport() error
}

// Handler contains all HTTP handlers
type Handler struct {
	runs       ports.RunService
	metricsSvc ports.MetricsService
	history    ports.HistoryStore
	trigger    Trigger
	logger     *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(
	runs ports.RunService,
	metricsSvc ports.MetricsService,
	history ports.HistoryStore,
	trigger Trigger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		runs:       runs,
		metricsSvc: metricsSvc,
		history:    history,
		trigger:    trigger,
		logger:     logger.With("component", "http_handler"),
	}
}

// Health returns service health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	historyStatus := "healthy"

	checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.history.Ping(checkCtx); err != nil {
		h.logger.Warn("history store unreachable", "error", err)
		historyStatus = "unhealthy"
		status = "degraded"
	}

	response := map[string]interface{}{
		"status":  status,
		"history": historyStatus,
	}
	if t := h.metricsSvc.GetLastHeartbeat(); t != nil {
		response["last_heartbeat"] = t.Format(time.RFC3339)
	}
	if t := h.metricsSvc.GetLastRunTime(); t != nil {
		response["last_run"] = t.Format(time.RFC3339)
	}

	respondJSON(w, http.StatusOK, response)
}

// Status returns run counters and the configured benchmarks
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.metricsSvc.GetMetrics(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"benchmarks": h.runs.Benchmarks(),
		"metrics":    metrics,
	})
}

// TriggerResponse acknowledges a background job
type TriggerResponse struct {
	Status    string `json:"status"`
	Job       string `json:"job"`
	Benchmark string `json:"benchmark,omitempty"`
}

// RunAll starts a collection of every benchmark
func (h *Handler) RunAll(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger.TriggerAll(); err != nil {
		handleDomainError(w, err)
		return
	}

	h.logger.Info("run triggered", "job", "run_all", "remote_addr", r.RemoteAddr)
	respondJSON(w, http.StatusAccepted, TriggerResponse{Status: "accepted", Job: "run_all"})
}

// RunBenchmark starts a collection of one benchmark
func (h *Handler) RunBenchmark(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("benchmark")
	if code == "" {
		respondError(w, http.StatusBadRequest, "benchmark is required")
		return
	}

	if err := h.trigger.TriggerBenchmark(code); err != nil {
		handleDomainError(w, err)
		return
	}

	h.logger.Info("run triggered", "job", "run_benchmark", "benchmark", code, "remote_addr", r.RemoteAddr)
	respondJSON(w, http.StatusAccepted, TriggerResponse{Status: "accepted", Job: "run_benchmark", Benchmark: code})
}

// Export rebuilds every export bundle from stored history
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger.TriggerExport(); err != nil {
		handleDomainError(w, err)
		return
	}

	h.logger.Info("export triggered", "remote_addr", r.RemoteAddr)
	respondJSON(w, http.StatusAccepted, TriggerResponse{Status: "accepted", Job: "export"})
}
