package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

const (
	defaultSweepSpec = "@every 10m"
	stopTimeout      = 30 * time.Second
)

// Sweeper drops expired entries, e.g. of the trigger rate limit store
type Sweeper interface {
	Sweep() int
}

// Scheduler runs benchmark collections on cron schedules and on demand
type Scheduler struct {
	runs      ports.RunService
	metrics   ports.MetricsService
	sweeper   Sweeper
	sweepSpec string
	cfg       config.ScheduleConfig
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	cron       *cron.Cron
	running    bool
	runCtx     context.Context
	cancelRuns context.CancelFunc
	inflight   sync.WaitGroup
	weeklyID   cron.EntryID
}

// Option configures the scheduler
type Option func(*Scheduler)

// WithSweeper registers a store that is swept periodically
func WithSweeper(s Sweeper) Option {
	return func(sc *Scheduler) {
		sc.sweeper = s
	}
}

// WithSweepSpec overrides how often the sweeper runs
func WithSweepSpec(spec string) Option {
	return func(sc *Scheduler) {
		if spec != "" {
			sc.sweepSpec = spec
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(sc *Scheduler) {
		sc.now = now
	}
}

// NewScheduler creates a new scheduler
func NewScheduler(runs ports.RunService, metrics ports.MetricsService, cfg config.ScheduleConfig, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		runs:      runs,
		metrics:   metrics,
		sweepSpec: defaultSweepSpec,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start registers the cron jobs and starts the scheduler. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", s.cfg.Timezone, err)
	}

	clog := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	weeklyID, err := c.AddFunc(s.cfg.Weekly, func() { s.runAll("weekly") })
	if err != nil {
		return fmt.Errorf("invalid weekly schedule %q: %w", s.cfg.Weekly, err)
	}
	if s.cfg.Midweek != "" {
		if _, err := c.AddFunc(s.cfg.Midweek, func() { s.runAll("midweek") }); err != nil {
			return fmt.Errorf("invalid midweek schedule %q: %w", s.cfg.Midweek, err)
		}
	}
	if s.cfg.Heartbeat != "" {
		if _, err := c.AddFunc(s.cfg.Heartbeat, s.heartbeat); err != nil {
			return fmt.Errorf("invalid heartbeat schedule %q: %w", s.cfg.Heartbeat, err)
		}
	}
	if s.sweeper != nil {
		if _, err := c.AddFunc(s.sweepSpec, s.sweep); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", s.sweepSpec, err)
		}
	}

	s.runCtx, s.cancelRuns = context.WithCancel(ctx)
	s.cron = c
	s.weeklyID = weeklyID
	s.running = true
	c.Start()

	s.logger.Info("scheduler started",
		"timezone", loc.String(),
		"weekly", s.cfg.Weekly,
		"midweek", s.cfg.Midweek,
		"heartbeat", s.cfg.Heartbeat,
		"next_run", c.Entry(weeklyID).Next,
	)

	return nil
}

// Stop cancels in-flight runs and waits for them to persist what they collected
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancelRuns()
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-time.After(stopTimeout):
		return context.DeadlineExceeded
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerAll starts a run of every benchmark in the background
func (s *Scheduler) TriggerAll() error {
	return s.spawn("run_all", func(ctx context.Context) {
		if _, err := s.runs.RunAll(ctx, "manual"); err != nil {
			s.logger.Error("manual run finished with errors", "error", err)
		}
	})
}

// TriggerBenchmark starts a run of one benchmark in the background
func (s *Scheduler) TriggerBenchmark(code string) error {
	if !slices.Contains(s.runs.Benchmarks(), code) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownBenchmark, code)
	}

	return s.spawn("run_benchmark", func(ctx context.Context) {
		if _, err := s.runs.RunBenchmark(ctx, code, "manual"); err != nil {
			s.logger.Error("manual benchmark run failed", "benchmark", code, "error", err)
		}
	})
}

// TriggerExport rebuilds every export bundle in the background
func (s *Scheduler) TriggerExport() error {
	return s.spawn("export", func(ctx context.Context) {
		n, err := s.runs.ExportAll(ctx)
		if err != nil {
			s.logger.Error("manual export finished with errors", "exported", n, "error", err)
			return
		}
		s.logger.Info("manual export complete", "exported", n)
	})
}

func (s *Scheduler) spawn(job string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return domain.ErrNotRunning
	}

	ctx := s.runCtx
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("triggered job panicked", "job", job, "panic", rec)
			}
		}()

		s.logger.Info("triggered job started", "job", job)
		fn(ctx)
	}()

	return nil
}

func (s *Scheduler) runAll(trigger string) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	s.logger.Info("scheduled collection started", "trigger", trigger)
	if _, err := s.runs.RunAll(ctx, trigger); err != nil {
		s.logger.Error("scheduled collection finished with errors", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) heartbeat() {
	now := s.now()
	if s.metrics != nil {
		s.metrics.RecordHeartbeat(now)
	}

	attrs := []any{"at", now}
	if s.metrics != nil {
		if last := s.metrics.GetLastRunTime(); last != nil {
			attrs = append(attrs, "last_run", *last)
		}
	}
	s.mu.Lock()
	if s.cron != nil {
		attrs = append(attrs, "next_run", s.cron.Entry(s.weeklyID).Next)
	}
	s.mu.Unlock()

	s.logger.Info("scheduler heartbeat", attrs...)
}

func (s *Scheduler) sweep() {
	if removed := s.sweeper.Sweep(); removed > 0 {
		s.logger.Debug("expired trigger limits swept", "removed", removed)
	}
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
