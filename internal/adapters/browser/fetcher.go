// Package browser fetches pages with a headless Chrome for sites that render
// their result lists client side.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultRenderWait = 3 * time.Second
)

// Fetcher implements ports.PageFetcher on top of chromedp.
// Each Fetch opens a new tab in a shared browser process.
type Fetcher struct {
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	renderWait  time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	started bool
	// launch allocates the browser on browserCtx
	launch func(ctx context.Context) error
}

// Option configures the fetcher
type Option func(*config)

type config struct {
	timeout    time.Duration
	renderWait time.Duration
	execPath   string
	logger     *slog.Logger
}

// WithTimeout bounds a single page load
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRenderWait sets how long to wait after navigation for scripts to render
func WithRenderWait(d time.Duration) Option {
	return func(c *config) {
		c.renderWait = d
	}
}

// WithExecPath sets the Chrome binary
func WithExecPath(path string) Option {
	return func(c *config) {
		c.execPath = path
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New prepares a headless browser. Chrome starts on the first Fetch.
func New(opts ...Option) *Fetcher {
	cfg := config{
		timeout:    defaultTimeout,
		renderWait: defaultRenderWait,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
	}

	logger := cfg.logger.With("component", "browser")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	return &Fetcher{
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancel:      cancel,
		timeout:     cfg.timeout,
		renderWait:  cfg.renderWait,
		logger:      logger,
		launch:      func(ctx context.Context) error { return chromedp.Run(ctx) },
	}
}

// ensureBrowser starts Chrome on the shared context once; tabs must not be
// opened before. A failed launch is retried by the next Fetch.
func (f *Fetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return nil
	}

	start := time.Now()
	if err := f.launch(f.browserCtx); err != nil {
		return err
	}
	f.started = true

	f.logger.Info("browser started", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Fetch navigates to url and returns the rendered HTML
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, fmt.Errorf("%w: start browser: %v", domain.ErrPlatformUnavailable, err)
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	userAgent, extra := splitHeaders(headers)

	var html string
	var cookies []*http.Cookie

	start := time.Now()
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if userAgent == "" {
				return nil
			}
			return emulation.SetUserAgentOverride(userAgent).WithAcceptLanguage("de-DE").Do(ctx)
		}),
		network.SetExtraHTTPHeaders(extra),
		chromedp.Navigate(url),
		chromedp.Sleep(f.renderWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			got, err := network.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			cookies = convertCookies(got)
			return nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: browser fetch %s: %v", domain.ErrPlatformUnavailable, url, err)
	}

	f.logger.Debug("page rendered", "url", url, "bytes", len(html), "duration_ms", time.Since(start).Milliseconds())

	return &domain.Page{
		URL:        url,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		Cookies:    cookies,
	}, nil
}

// Close shuts the browser down
func (f *Fetcher) Close() {
	f.cancel()
	f.cancelAlloc()
}

// splitHeaders separates the user agent, which Chrome sets through emulation,
// from the headers sent verbatim
func splitHeaders(headers map[string]string) (string, network.Headers) {
	extra := network.Headers{}
	var userAgent string
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			userAgent = v
			continue
		}
		extra[k] = v
	}
	return userAgent, extra
}

func convertCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return out
}
