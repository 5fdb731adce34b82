// Package paapi collects Amazon offers through the Product Advertising API 5.0.
package paapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/pkg/retry"
)

const (
	// DefaultHost is the German marketplace endpoint
	DefaultHost = "webservices.amazon.de"
	// DefaultRegion is the signing region of DefaultHost
	DefaultRegion = "eu-west-1"

	searchPath   = "/paapi5/searchitems"
	searchTarget = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.SearchItems"

	defaultItemCount  = 10
	defaultQueryDelay = 1100 * time.Millisecond
)

var searchResources = []string{
	"ItemInfo.Title",
	"ItemInfo.ByLineInfo",
	"Offers.Listings.Price",
	"Offers.Listings.Condition",
	"Offers.Listings.DeliveryInfo.IsFreeShippingEligible",
	"Offers.Listings.MerchantInfo",
}

// Config holds the associate credentials
type Config struct {
	AccessKey  string
	SecretKey  string
	PartnerTag string
	Region     string
	Host       string
	// Endpoint overrides https://<Host>, e.g. for tests
	Endpoint string
}

// Collector implements ports.Collector for the Product Advertising API
type Collector struct {
	cfg        Config
	signer     Signer
	client     *transport.Transport
	base       *collector.Base
	queryDelay time.Duration
	baseOpts   []collector.Option
}

// Option configures the collector
type Option func(*Collector)

// WithQueryDelay sets the pause between two queries
func WithQueryDelay(d time.Duration) Option {
	return func(c *Collector) {
		c.queryDelay = d
	}
}

// WithBaseOptions passes options to the shared collect loop
func WithBaseOptions(opts ...collector.Option) Option {
	return func(c *Collector) {
		c.baseOpts = append(c.baseOpts, opts...)
	}
}

// New creates a Product Advertising API collector
func New(cfg Config, client *transport.Transport, opts ...Option) *Collector {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://" + cfg.Host
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	c := &Collector{
		cfg: cfg,
		signer: Signer{
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Host:      cfg.Host,
		},
		client:     client,
		queryDelay: defaultQueryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	baseOpts := append([]collector.Option{
		collector.WithMaxResults(defaultItemCount),
		collector.WithPause(func(ctx context.Context, _ bool) error {
			return retry.SleepContext(ctx, c.queryDelay)
		}),
	}, c.baseOpts...)
	c.base = collector.NewBase(domain.PlatformAmazon, baseOpts...)

	return c
}

// Platform returns the Amazon platform
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformAmazon
}

// Configured reports whether access key, secret key and partner tag are set
func (c *Collector) Configured() bool {
	return c.cfg.AccessKey != "" && c.cfg.SecretKey != "" && c.cfg.PartnerTag != ""
}

// Collect runs every benchmark query against the API
func (c *Collector) Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult {
	if !c.Configured() {
		return c.base.Skip(cfg, fmt.Sprintf("%v: AMAZON_ACCESS_KEY, AMAZON_SECRET_KEY and AMAZON_PARTNER_TAG are required", domain.ErrNotConfigured))
	}
	return c.base.Collect(ctx, cfg, c)
}

// Search runs one SearchItems request
func (c *Collector) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: amazon credentials missing", domain.ErrNotConfigured)
	}

	payload, err := json.Marshal(c.buildRequest(query, opts))
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	headers := c.signer.Sign(searchTarget, searchPath, payload, c.base.Now())
	delete(headers, "host")

	resp, err := c.client.Post(ctx, c.cfg.Endpoint+searchPath, payload, transport.Headers(headers))
	if err != nil {
		if transport.StatusCode(err) == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: amazon search %q: %v", domain.ErrRateLimited, query, err)
		}
		return nil, fmt.Errorf("amazon search %q: %w", query, err)
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: amazon search %q: %v", domain.ErrInvalidResponse, query, err)
	}

	collectedAt := c.base.Now().UTC()
	observations := make([]domain.PriceObservation, 0, len(result.SearchResult.Items))
	for _, it := range result.SearchResult.Items {
		if o, ok := it.observation(collectedAt); ok {
			observations = append(observations, o)
		}
	}

	return observations, nil
}

func (c *Collector) buildRequest(query string, opts domain.SearchOptions) searchRequest {
	count := opts.MaxResults
	if count <= 0 || count > defaultItemCount {
		count = defaultItemCount
	}

	req := searchRequest{
		PartnerTag:  c.cfg.PartnerTag,
		PartnerType: "Associates",
		Keywords:    query,
		SearchIndex: "All",
		ItemCount:   count,
		Resources:   searchResources,
		Condition:   "All",
	}
	if opts.Condition == domain.ConditionNew {
		req.Condition = "New"
	}
	if opts.PriceMin.IsPositive() {
		req.MinPrice = opts.PriceMin.Shift(2).Round(0).IntPart()
	}
	if opts.PriceMax.IsPositive() {
		req.MaxPrice = opts.PriceMax.Shift(2).Round(0).IntPart()
	}
	return req
}

type searchRequest struct {
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Keywords    string   `json:"Keywords"`
	SearchIndex string   `json:"SearchIndex"`
	ItemCount   int      `json:"ItemCount"`
	Resources   []string `json:"Resources"`
	MinPrice    int64    `json:"MinPrice,omitempty"`
	MaxPrice    int64    `json:"MaxPrice,omitempty"`
	Condition   string   `json:"Condition"`
}

type searchResponse struct {
	SearchResult struct {
		Items            []searchItem `json:"Items"`
		TotalResultCount int          `json:"TotalResultCount"`
	} `json:"SearchResult"`
}

type displayValue struct {
	DisplayValue string `json:"DisplayValue"`
}

type searchItem struct {
	ASIN          string `json:"ASIN"`
	DetailPageURL string `json:"DetailPageURL"`
	ItemInfo      struct {
		Title      *displayValue `json:"Title"`
		ByLineInfo struct {
			Brand *displayValue `json:"Brand"`
		} `json:"ByLineInfo"`
	} `json:"ItemInfo"`
	Offers struct {
		Listings []struct {
			Price *struct {
				Amount   decimal.Decimal `json:"Amount"`
				Currency string          `json:"Currency"`
			} `json:"Price"`
			Condition *struct {
				Value string `json:"Value"`
			} `json:"Condition"`
			DeliveryInfo *struct {
				IsFreeShippingEligible bool `json:"IsFreeShippingEligible"`
			} `json:"DeliveryInfo"`
			MerchantInfo *struct {
				Name string `json:"Name"`
			} `json:"MerchantInfo"`
		} `json:"Listings"`
	} `json:"Offers"`
}

// observation maps the first listing; items without offers are dropped
func (it searchItem) observation(collectedAt time.Time) (domain.PriceObservation, bool) {
	if len(it.Offers.Listings) == 0 {
		return domain.PriceObservation{}, false
	}
	listing := it.Offers.Listings[0]
	if listing.Price == nil || !listing.Price.Amount.IsPositive() {
		return domain.PriceObservation{}, false
	}

	o := domain.PriceObservation{
		ProductID:   it.ASIN,
		Platform:    domain.PlatformAmazon,
		Price:       listing.Price.Amount,
		Currency:    listing.Price.Currency,
		Condition:   domain.ConditionUsed,
		InStock:     true,
		URL:         it.DetailPageURL,
		CollectedAt: collectedAt,
	}
	if o.Currency == "" {
		o.Currency = domain.DefaultCurrency
	}
	if it.ItemInfo.Title != nil {
		o.Title = it.ItemInfo.Title.DisplayValue
	}
	if listing.Condition != nil && strings.EqualFold(listing.Condition.Value, "new") {
		o.Condition = domain.ConditionNew
	}
	if listing.DeliveryInfo != nil && listing.DeliveryInfo.IsFreeShippingEligible {
		free := decimal.Zero
		o.Shipping = &free
	}
	if listing.MerchantInfo != nil {
		o.Seller = listing.MerchantInfo.Name
	}

	return o, true
}
