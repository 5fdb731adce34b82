package app

import (
	"context"
	"time"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/amazondma"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/browser"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/cache"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/ebay"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/geizhals"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/idealo"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/paapi"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/scrape"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

// scrapePolicy is the pacing of one HTML platform
type scrapePolicy struct {
	name        string
	rps         float64
	maxAttempts int
	timeout     time.Duration
}

func (p *Pipeline) buildCollectors(ctx context.Context) ([]ports.Collector, error) {
	cfg := p.Config
	baseOpts := []collector.Option{
		collector.WithRawStore(p.Files),
		collector.WithLogger(p.logger),
	}

	tokens, err := p.buildTokenCache(ctx)
	if err != nil {
		return nil, err
	}

	var pages *browser.Fetcher
	if cfg.Scraper.UseBrowser {
		pages = browser.New(
			browser.WithTimeout(cfg.Scraper.BrowserTimeout),
			browser.WithLogger(p.logger),
		)
		p.closers = append(p.closers, pages.Close)
	}

	fetcher := func(policy scrapePolicy) ports.PageFetcher {
		if pages != nil {
			return scrape.NewLimitedFetcher(pages, ratelimit.NewLimiter(policy.rps))
		}
		return scrape.NewHTTPFetcher(transport.New(policy.name,
			transport.WithRequestsPerSecond(policy.rps),
			transport.WithMaxRetries(policy.maxAttempts),
			transport.WithTimeout(policy.timeout),
			transport.WithUserAgent(cfg.Collector.UserAgent),
			transport.WithObserver(p.Metrics),
			transport.WithLogger(p.logger),
		))
	}
	sessionOpts := scrape.WithSessionOptions(scrape.WithLogger(p.logger))

	ebayClient := transport.New("ebay",
		transport.WithRequestsPerSecond(cfg.Ebay.RequestsPerSecond),
		transport.WithMaxRetries(cfg.Collector.MaxRetries),
		transport.WithTimeout(cfg.Collector.Timeout),
		transport.WithUserAgent(cfg.Collector.UserAgent),
		transport.WithObserver(p.Metrics),
		transport.WithLogger(p.logger),
	)
	collectors := []ports.Collector{
		ebay.New(ebay.Config{
			AppID:       cfg.Ebay.AppID,
			CertID:      cfg.Ebay.CertID,
			Marketplace: cfg.Ebay.Marketplace,
			BaseURL:     cfg.Ebay.BaseURL,
		}, ebayClient,
			ebay.WithTokenCache(tokens),
			ebay.WithBaseOptions(baseOpts...),
		),
	}

	if cfg.Amazon.Mode == "scrape" {
		collectors = append(collectors, amazondma.New(
			fetcher(scrapePolicy{"amazon", amazondma.RequestsPerSecond, amazondma.MaxAttempts, amazondma.Timeout}),
			scrape.WithBaseURL(cfg.Amazon.MarketplaceURL),
			sessionOpts,
			scrape.WithBaseOptions(baseOpts...),
		))
	} else {
		amazonClient := transport.New("paapi",
			transport.WithRequestsPerSecond(cfg.Collector.RequestsPerSecond),
			transport.WithMaxRetries(cfg.Collector.MaxRetries),
			transport.WithTimeout(cfg.Collector.Timeout),
			transport.WithUserAgent(cfg.Collector.UserAgent),
			transport.WithObserver(p.Metrics),
			transport.WithLogger(p.logger),
		)
		collectors = append(collectors, paapi.New(paapi.Config{
			AccessKey:  cfg.Amazon.AccessKey,
			SecretKey:  cfg.Amazon.SecretKey,
			PartnerTag: cfg.Amazon.PartnerTag,
			Region:     cfg.Amazon.Region,
			Host:       cfg.Amazon.Host,
		}, amazonClient, paapi.WithBaseOptions(baseOpts...)))
	}

	collectors = append(collectors,
		geizhals.New(
			fetcher(scrapePolicy{"geizhals", geizhals.RequestsPerSecond, geizhals.MaxAttempts, geizhals.Timeout}),
			scrape.WithBaseURL(cfg.Scraper.GeizhalsURL),
			sessionOpts,
			scrape.WithBaseOptions(baseOpts...),
		),
		idealo.New(
			fetcher(scrapePolicy{"idealo", idealo.RequestsPerSecond, idealo.MaxAttempts, idealo.Timeout}),
			scrape.WithBaseURL(cfg.Scraper.IdealoURL),
			sessionOpts,
			scrape.WithBaseOptions(baseOpts...),
		),
	)

	return collectors, nil
}

func (p *Pipeline) buildTokenCache(ctx context.Context) (ports.TokenCache, error) {
	if p.Config.TokenCache.Backend != "redis" {
		return cache.NewMemoryTokenCache(), nil
	}

	client, err := cache.NewRedisClient(ctx,
		p.Config.TokenCache.RedisAddr,
		p.Config.TokenCache.RedisPassword,
		p.Config.TokenCache.RedisDB,
	)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, func() {
		if err := client.Close(); err != nil {
			p.logger.Warn("failed to close redis client", "error", err)
		}
	})

	return cache.NewRedisTokenCache(client, p.Config.TokenCache.Namespace), nil
}
