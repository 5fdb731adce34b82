package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/prxgr4mmer/ec-index-collector/internal/adapters/http"
	"github.com/prxgr4mmer/ec-index-collector/internal/app"
	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/internal/worker"
	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := app.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting ec-index scheduler")

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build and start application
	application, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	// Start application components
	if err := application.Start(ctx); err != nil {
		logger.Error("failed to start application", "error", err)
		application.Shutdown()
		os.Exit(1)
	}

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, application, logger)
}

// Application holds all components
type Application struct {
	pipeline   *app.Pipeline
	scheduler  *worker.Scheduler
	httpServer *httpAdapter.Server
	logger     *slog.Logger
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("building application")

	// 1. Pipeline: storage, collectors and services
	pipeline, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// 2. Manual trigger throttling
	limits := ratelimit.NewStore(cfg.Trigger.Limit, cfg.Trigger.Window)

	// 3. Background scheduler
	scheduler := worker.NewScheduler(
		pipeline.Runs,
		pipeline.MetricsService,
		cfg.Schedule,
		logger,
		worker.WithSweeper(limits),
	)

	// 4. Transport Layer - HTTP Server
	handler := httpAdapter.NewHandler(
		pipeline.Runs,
		pipeline.MetricsService,
		pipeline.History,
		scheduler,
		logger,
	)
	httpServer := httpAdapter.NewServer(
		cfg.Server,
		handler,
		limits,
		pipeline.Metrics.Handler(),
		logger,
	)

	logger.Info("application built successfully")

	return &Application{
		pipeline:   pipeline,
		scheduler:  scheduler,
		httpServer: httpServer,
		logger:     logger,
	}, nil
}

func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("starting application components")

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	// Bind the HTTP port; serving continues in the background
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	a.logger.Info("application started",
		"http_addr", a.httpServer.Addr(),
		"timezone", a.pipeline.Config.Schedule.Timezone,
	)

	return nil
}

func (a *Application) Shutdown() {
	a.logger.Info("shutting down application")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop HTTP server first so no new triggers arrive
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown http server", "error", err)
	}

	// Stop scheduler and wait for in-flight runs
	if err := a.scheduler.Stop(); err != nil {
		a.logger.Error("failed to stop scheduler", "error", err)
	}

	// Release browser, cache and database
	a.pipeline.Close()

	a.logger.Info("application shutdown complete")
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, application *Application, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		application.Shutdown()
	case <-ctx.Done():
		application.Shutdown()
	}
}
