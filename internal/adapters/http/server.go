package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

const shutdownTimeout = 30 * time.Second

// Server serves the operations endpoints next to the scheduler
type Server struct {
	server *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	handler *Handler,
	limits *ratelimit.Store,
	metrics http.Handler,
	logger *slog.Logger,
) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(handler, limits, metrics, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger.With("component", "http_server"),
	}
}

// Start binds the port and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("http server already started")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops accepting connections and waits for open requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-done
	return nil
}

// Addr returns the bound address once started, the configured one before
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}
