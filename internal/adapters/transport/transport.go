package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
	"github.com/prxgr4mmer/ec-index-collector/pkg/retry"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultUserAgent   = "EC-Index-DataCollector/1.0"
)

// Observer receives request outcomes, e.g. for metrics
type Observer interface {
	ObserveRequest(client string, status int, duration time.Duration)
	ObserveRetry(client string)
}

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// Transport performs rate limited HTTP calls with retry and backoff.
// Each collector owns one Transport.
type Transport struct {
	name      string
	client    *resty.Client
	limiter   *ratelimit.Limiter
	retryConf retry.Config
	logger    *slog.Logger
	observer  Observer
}

// Option configures the transport
type Option func(*Transport)

// WithRequestsPerSecond sets the minimum spacing between attempts
func WithRequestsPerSecond(rps float64) Option {
	return func(t *Transport) {
		t.limiter = ratelimit.NewLimiter(rps)
	}
}

// WithLimiter shares an existing limiter
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(t *Transport) {
		if l != nil {
			t.limiter = l
		}
	}
}

// WithMaxRetries sets the total number of attempts per call
func WithMaxRetries(attempts int) Option {
	return func(t *Transport) {
		sleep, onRetry := t.retryConf.Sleep, t.retryConf.OnRetry
		t.retryConf = retry.ExponentialConfig(attempts)
		t.retryConf.Sleep, t.retryConf.OnRetry = sleep, onRetry
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.client.SetTimeout(timeout)
		}
	}
}

// WithUserAgent sets the identifying client header
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		if ua != "" {
			t.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithHeader sets a header sent with every request
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.client.SetHeader(key, value)
	}
}

// WithSleep replaces the backoff wait
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Transport) {
		t.retryConf.Sleep = sleep
	}
}

// WithObserver registers an observer for request outcomes
func WithObserver(o Observer) Option {
	return func(t *Transport) {
		t.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger.With("component", "transport", "client", t.name)
		t.client.SetLogger(restyLogger{logger: t.logger})
	}
}

// New creates a transport identified by name in logs and metrics
func New(name string, opts ...Option) *Transport {
	logger := slog.Default().With("component", "transport", "client", name)

	t := &Transport{
		name: name,
		client: resty.New().
			SetTimeout(defaultTimeout).
			// cookies are owned by the scraping session
			SetCookieJar(nil).
			SetHeader("User-Agent", defaultUserAgent).
			SetHeader("Accept-Language", "de-DE,de;q=0.9,en;q=0.8").
			SetLogger(restyLogger{logger: logger}),
		limiter:   ratelimit.NewLimiter(1),
		retryConf: retry.ExponentialConfig(defaultMaxAttempts),
		logger:    logger,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.retryConf.OnRetry = t.onRetry

	return t
}

// Name returns the transport name
func (t *Transport) Name() string {
	return t.name
}

// RequestOption customizes a single request
type RequestOption func(*resty.Request)

// Header sets a request header
func Header(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}

// Headers sets several request headers
func Headers(headers map[string]string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeaders(headers)
	}
}

// Cookies attaches cookies to the request
func Cookies(cookies []*http.Cookie) RequestOption {
	return func(r *resty.Request) {
		r.SetCookies(cookies)
	}
}

// Get performs a GET request
func (t *Transport) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return t.do(ctx, http.MethodGet, url, nil, opts)
}

// Post performs a POST request with body
func (t *Transport) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return t.do(ctx, http.MethodPost, url, body, opts)
}

func (t *Transport) do(ctx context.Context, method, url string, body any, opts []RequestOption) (*Response, error) {
	attempt := 0

	return retry.DoWithResult(ctx, t.retryConf, func(ctx context.Context) (*Response, error) {
		attempt++

		if err := t.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		req := t.client.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		for _, opt := range opts {
			opt(req)
		}

		t.logger.Debug("http request", "method", method, "url", url, "attempt", attempt)

		start := time.Now()
		resp, err := req.Execute(method, url)
		if err != nil {
			t.observe(0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, retry.NewRetryableError(fmt.Errorf("%s %s: %w", method, url, err))
		}

		status := resp.StatusCode()
		t.observe(status, time.Since(start))
		t.logger.Debug("http response", "method", method, "url", url, "status", status)

		if status >= http.StatusBadRequest {
			statusErr := newStatusError(method, url, status, resp.Body())
			if statusErr.Retryable() {
				return nil, retry.NewRetryableError(statusErr)
			}
			t.logger.Warn("http request failed", "method", method, "url", url, "status", status)
			return nil, statusErr
		}

		return &Response{
			URL:        url,
			StatusCode: status,
			Header:     resp.Header(),
			Body:       resp.Body(),
			Cookies:    resp.Cookies(),
		}, nil
	})
}

func (t *Transport) onRetry(attempt int, err error, backoff time.Duration) {
	t.logger.Warn("http retry scheduled",
		"attempt", attempt,
		"backoff", backoff.String(),
		"error", err,
	)
	if t.observer != nil {
		t.observer.ObserveRetry(t.name)
	}
}

func (t *Transport) observe(status int, d time.Duration) {
	if t.observer != nil {
		t.observer.ObserveRequest(t.name, status, d)
	}
}

// restyLogger routes resty's internal messages to slog
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
