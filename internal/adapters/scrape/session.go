// Package scrape holds the session handling and HTML helpers shared by the
// scraping collectors.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/pkg/retry"
)

// State is the lifecycle position of a scraping session
type State int

const (
	StateUninitialized State = iota
	StateSessionWarm
	StateSearching
	StateCooldown
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSessionWarm:
		return "session_warm"
	case StateSearching:
		return "searching"
	case StateCooldown:
		return "cooldown"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Range is a closed interval a random delay is drawn from
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns Min + f*(Max-Min) for f in [0,1)
func (r Range) Pick(f float64) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(f*float64(r.Max-r.Min))
}

// Pacing holds the delays of a scraping session
type Pacing struct {
	WarmUp         Range
	BetweenQueries Range
	AfterError     Range
	Cooldown       Range
}

// DefaultCooldown is the wait after a soft block
var DefaultCooldown = Range{Min: 60 * time.Second, Max: 120 * time.Second}

// Session keeps the browser identity of one scraping collector: user agent,
// cookies and pacing. Queries of one session must run sequentially.
type Session struct {
	name       string
	landingURL string
	fetcher    ports.PageFetcher
	pacing     Pacing
	userAgents []string
	markers    []string
	sleep      func(ctx context.Context, d time.Duration) error
	random     func() float64
	logger     *slog.Logger

	mu        sync.Mutex
	state     State
	userAgent string
	cookies   []*http.Cookie
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLandingURL sets the page fetched to obtain session cookies
func WithLandingURL(url string) SessionOption {
	return func(s *Session) {
		s.landingURL = url
	}
}

// WithPacing sets the session delays
func WithPacing(p Pacing) SessionOption {
	return func(s *Session) {
		s.pacing = p
	}
}

// WithUserAgents replaces the rotated user agents
func WithUserAgents(agents ...string) SessionOption {
	return func(s *Session) {
		if len(agents) > 0 {
			s.userAgents = agents
		}
	}
}

// WithBlockMarkers sets body substrings that identify a challenge page
func WithBlockMarkers(markers ...string) SessionOption {
	return func(s *Session) {
		s.markers = markers
	}
}

// WithSleep replaces the delay function
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) {
		s.sleep = sleep
	}
}

// WithRandom replaces the source used for jitter and user agent rotation
func WithRandom(random func() float64) SessionOption {
	return func(s *Session) {
		s.random = random
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger.With("component", "scrape_session", "session", s.name)
	}
}

// NewSession creates an uninitialized session
func NewSession(name string, fetcher ports.PageFetcher, opts ...SessionOption) *Session {
	s := &Session{
		name:       name,
		fetcher:    fetcher,
		pacing:     Pacing{Cooldown: DefaultCooldown},
		userAgents: UserAgents,
		sleep:      retry.SleepContext,
		random:     rand.Float64,
		logger:     slog.Default().With("component", "scrape_session", "session", name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserAgent returns the user agent of the latest request
func (s *Session) UserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgent
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.logger.Debug("session state changed", "from", prev.String(), "to", state.String())
	}
}

// Warm starts a fresh session: it picks a user agent, loads the landing page
// for cookies and waits the warm-up delay. A failed landing page leaves the
// session usable without cookies.
func (s *Session) Warm(ctx context.Context) error {
	s.mu.Lock()
	s.pickUserAgent()
	s.cookies = nil
	s.state = StateUninitialized
	s.mu.Unlock()

	var landingErr error
	if s.landingURL != "" {
		page, err := s.fetcher.Fetch(ctx, s.landingURL, s.headers())
		if err != nil {
			s.logger.Warn("could not initialize session", "url", s.landingURL, "error", err)
			landingErr = fmt.Errorf("session warm-up: %w", err)
		} else {
			s.mu.Lock()
			s.cookies = page.Cookies
			s.mu.Unlock()
			s.logger.Debug("session cookies obtained", "cookies", len(page.Cookies))
		}
	}

	s.setState(StateSessionWarm)

	if err := s.wait(ctx, s.pacing.WarmUp); err != nil {
		return err
	}
	return landingErr
}

// Fetch loads url with the session cookies and a freshly rotated user agent.
// Challenge pages and exhausted rate limits put the session into cooldown and
// return domain.ErrSoftBlocked.
func (s *Session) Fetch(ctx context.Context, url string) (*domain.Page, error) {
	s.setState(StateSearching)

	s.mu.Lock()
	s.pickUserAgent()
	s.mu.Unlock()

	page, err := s.fetcher.Fetch(ctx, url, s.headers())
	if err != nil {
		if transport.StatusCode(err) == http.StatusTooManyRequests {
			if cerr := s.Cooldown(ctx, "rate limited"); cerr != nil {
				return nil, cerr
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrSoftBlocked, err)
		}
		return nil, err
	}

	if s.Blocked(page.Body) {
		if cerr := s.Cooldown(ctx, "challenge page"); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrSoftBlocked, url)
	}

	if len(page.Cookies) > 0 {
		s.mu.Lock()
		s.cookies = mergeCookies(s.cookies, page.Cookies)
		s.mu.Unlock()
	}

	return page, nil
}

// Blocked reports whether body looks like a challenge page
func (s *Session) Blocked(body []byte) bool {
	if len(s.markers) == 0 {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range s.markers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Cooldown waits the long backoff of a soft block. Nested cooldowns are allowed.
func (s *Session) Cooldown(ctx context.Context, reason string) error {
	s.setState(StateCooldown)
	d := s.pacing.Cooldown.Pick(s.random())
	s.logger.Warn("soft block detected, cooling down", "reason", reason, "wait", d.String())

	err := s.sleep(ctx, d)
	s.setState(StateSearching)
	return err
}

// Pause waits between two queries, longer after a failed one
func (s *Session) Pause(ctx context.Context, failed bool) error {
	if failed {
		return s.wait(ctx, s.pacing.AfterError)
	}
	return s.wait(ctx, s.pacing.BetweenQueries)
}

// Finish ends the session
func (s *Session) Finish() {
	s.setState(StateDone)
}

func (s *Session) wait(ctx context.Context, r Range) error {
	d := r.Pick(s.random())
	if d <= 0 {
		return ctx.Err()
	}
	s.logger.Debug("waiting", "wait", d.String())
	return s.sleep(ctx, d)
}

// pickUserAgent must be called with mu held
func (s *Session) pickUserAgent() {
	s.userAgent = s.userAgents[int(s.random()*float64(len(s.userAgents)))%len(s.userAgents)]
}

func (s *Session) headers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ua := s.userAgent
	if ua == "" {
		ua = s.userAgents[0]
	}
	headers := BrowserHeaders(ua)
	if cookie := cookieHeader(s.cookies); cookie != "" {
		headers["Cookie"] = cookie
	}
	return headers
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func mergeCookies(current, fresh []*http.Cookie) []*http.Cookie {
	index := make(map[string]int, len(current))
	out := make([]*http.Cookie, 0, len(current)+len(fresh))
	for _, c := range current {
		index[c.Name] = len(out)
		out = append(out, c)
	}
	for _, c := range fresh {
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}
