package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// Response helpers for consistent JSON responses

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErrorWithCode sends an error response with an error code
func respondErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleDomainError maps domain errors to HTTP responses
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownBenchmark):
		respondErrorWithCode(w, http.StatusNotFound, "unknown benchmark", "UNKNOWN_BENCHMARK")

	case errors.Is(err, domain.ErrRunInProgress):
		respondErrorWithCode(w, http.StatusConflict, "collection run already in progress", "RUN_IN_PROGRESS")

	case errors.Is(err, domain.ErrNotRunning):
		respondErrorWithCode(w, http.StatusServiceUnavailable, "scheduler not running", "SCHEDULER_STOPPED")

	case errors.Is(err, domain.ErrHistoryStore):
		respondErrorWithCode(w, http.StatusServiceUnavailable, "history store unavailable", "HISTORY_STORE_ERROR")

	default:
		respondErrorWithCode(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
