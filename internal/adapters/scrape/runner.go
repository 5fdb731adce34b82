package scrape

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
)

// Settings are the knobs shared by all scraping collectors
type Settings struct {
	BaseURL     string
	SessionOpts []SessionOption
	BaseOpts    []collector.Option
}

// Option adjusts Settings
type Option func(*Settings)

// WithBaseURL points the collector at another host, e.g. a test server
func WithBaseURL(u string) Option {
	return func(s *Settings) {
		s.BaseURL = strings.TrimRight(u, "/")
	}
}

// WithSessionOptions passes options to the scraping session
func WithSessionOptions(opts ...SessionOption) Option {
	return func(s *Settings) {
		s.SessionOpts = append(s.SessionOpts, opts...)
	}
}

// WithBaseOptions passes options to the shared collect loop
func WithBaseOptions(opts ...collector.Option) Option {
	return func(s *Settings) {
		s.BaseOpts = append(s.BaseOpts, opts...)
	}
}

// ApplyOptions builds Settings from defaults and options
func ApplyOptions(defaults Settings, opts []Option) Settings {
	s := defaults
	s.SessionOpts = append([]SessionOption(nil), defaults.SessionOpts...)
	s.BaseOpts = append([]collector.Option(nil), defaults.BaseOpts...)
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Runner drives a scraping Session through the shared collect loop
type Runner struct {
	session *Session
	base    *collector.Base
}

// NewRunner creates a session named after platform and binds its warm-up,
// pauses and shutdown to the collect loop
func NewRunner(platform domain.Platform, fetcher ports.PageFetcher, settings Settings) *Runner {
	session := NewSession(string(platform), fetcher, settings.SessionOpts...)

	baseOpts := append([]collector.Option{
		collector.WithPrepare(session.Warm),
		collector.WithPause(session.Pause),
		collector.WithFinish(session.Finish),
	}, settings.BaseOpts...)

	return &Runner{
		session: session,
		base:    collector.NewBase(platform, baseOpts...),
	}
}

// Session returns the scraping session
func (r *Runner) Session() *Session {
	return r.session
}

// Base returns the collect loop
func (r *Runner) Base() *collector.Base {
	return r.base
}

// Collect runs the benchmark queries through s
func (r *Runner) Collect(ctx context.Context, cfg domain.BenchmarkConfig, s collector.Searcher) *domain.CollectionResult {
	return r.base.Collect(ctx, cfg, s)
}

// Load fetches and parses a result page. A soft block yields a nil document
// and no error; the session has already cooled down.
func (r *Runner) Load(ctx context.Context, url string) (*goquery.Document, error) {
	page, err := r.session.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, domain.ErrSoftBlocked) {
			r.base.Logger().Warn("search soft blocked", "url", url)
			return nil, nil
		}
		return nil, err
	}
	return ParseDocument(page.Body)
}
