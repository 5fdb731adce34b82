package http

import (
	"log/slog"
	"net/http"

	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

// NewRouter creates the HTTP router with all routes.
// metrics serves the Prometheus exposition and may be nil.
func NewRouter(h *Handler, limits *ratelimit.Store, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /status", h.Status)

	// Prometheus
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Triggers
	mux.HandleFunc("POST /runs", RateLimit(limits, h.RunAll))
	mux.HandleFunc("POST /runs/{benchmark}", RateLimit(limits, h.RunBenchmark))
	mux.HandleFunc("POST /exports", RateLimit(limits, h.Export))

	// Apply middleware chain (order matters: outer -> inner)
	var handler http.Handler = mux
	handler = ContentTypeMiddleware(handler)
	handler = CORSMiddleware(handler)
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)

	return handler
}
