// Package ebay collects fixed-price listings through the eBay Browse API.
package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/cache"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/pkg/retry"
)

const (
	// DefaultBaseURL is the production API host
	DefaultBaseURL = "https://api.ebay.com"
	// DefaultMarketplace is the marketplace searched when none is set
	DefaultMarketplace = "EBAY_DE"

	tokenPath   = "/identity/v1/oauth2/token"
	searchPath  = "/buy/browse/v1/item_summary/search"
	tokenScope  = "https://api.ebay.com/oauth/api_scope"
	tokenMargin = 60 * time.Second

	defaultQueryDelay = 500 * time.Millisecond
)

// Config holds the application credentials
type Config struct {
	AppID       string
	CertID      string
	Marketplace string
	BaseURL     string
}

// Collector implements ports.Collector for eBay
type Collector struct {
	cfg        Config
	client     *transport.Transport
	tokens     ports.TokenCache
	base       *collector.Base
	queryDelay time.Duration
	baseOpts   []collector.Option
}

// Option configures the collector
type Option func(*Collector)

// WithTokenCache shares OAuth tokens through cache
func WithTokenCache(c ports.TokenCache) Option {
	return func(col *Collector) {
		if c != nil {
			col.tokens = c
		}
	}
}

// WithQueryDelay sets the pause between two queries
func WithQueryDelay(d time.Duration) Option {
	return func(col *Collector) {
		col.queryDelay = d
	}
}

// WithBaseOptions passes options to the shared collect loop
func WithBaseOptions(opts ...collector.Option) Option {
	return func(col *Collector) {
		col.baseOpts = append(col.baseOpts, opts...)
	}
}

// New creates an eBay collector calling the API through client
func New(cfg Config, client *transport.Transport, opts ...Option) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Marketplace == "" {
		cfg.Marketplace = DefaultMarketplace
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Collector{
		cfg:        cfg,
		client:     client,
		tokens:     cache.NewMemoryTokenCache(),
		queryDelay: defaultQueryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	baseOpts := append([]collector.Option{
		collector.WithPause(func(ctx context.Context, _ bool) error {
			return retry.SleepContext(ctx, c.queryDelay)
		}),
	}, c.baseOpts...)
	c.base = collector.NewBase(domain.PlatformEbay, baseOpts...)

	return c
}

// Platform returns the eBay platform
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformEbay
}

// Configured reports whether app id and cert id are set
func (c *Collector) Configured() bool {
	return c.cfg.AppID != "" && c.cfg.CertID != ""
}

// Collect runs every benchmark query against the Browse API
func (c *Collector) Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult {
	if !c.Configured() {
		return c.base.Skip(cfg, fmt.Sprintf("%v: EBAY_APP_ID and EBAY_CERT_ID are required", domain.ErrNotConfigured))
	}
	return c.base.Collect(ctx, cfg, c)
}

// Search runs one Browse API item search
func (c *Collector) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("filter", buildFilter(opts))
	if opts.SortBy == domain.SortPrice {
		params.Set("sort", "price")
	}

	resp, err := c.client.Get(ctx, c.cfg.BaseURL+searchPath+"?"+params.Encode(),
		transport.Headers(map[string]string{
			"Authorization":           "Bearer " + token,
			"X-EBAY-C-MARKETPLACE-ID": c.cfg.Marketplace,
			"X-EBAY-C-ENDUSERCTX":     "contextualLocation=country=DE",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ebay search %q: %w", query, err)
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: ebay search %q: %v", domain.ErrInvalidResponse, query, err)
	}

	collectedAt := c.base.Now().UTC()
	observations := make([]domain.PriceObservation, 0, len(result.ItemSummaries))
	for _, item := range result.ItemSummaries {
		o, ok := item.observation(collectedAt)
		if !ok {
			c.base.Logger().Debug("skipping unpriced item", "item_id", item.ItemID)
			continue
		}
		observations = append(observations, o)
	}

	return observations, nil
}

func (c *Collector) accessToken(ctx context.Context) (string, error) {
	key := "ebay:token:" + c.cfg.AppID

	token, found, err := c.tokens.Get(ctx, key)
	if err != nil {
		c.base.Logger().Warn("token cache read failed", "error", err)
	}
	if found {
		return token, nil
	}

	if !c.Configured() {
		return "", fmt.Errorf("%w: ebay credentials missing", domain.ErrNotConfigured)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(c.cfg.AppID + ":" + c.cfg.CertID))
	body := url.Values{}
	body.Set("grant_type", "client_credentials")
	body.Set("scope", tokenScope)

	resp, err := c.client.Post(ctx, c.cfg.BaseURL+tokenPath, body.Encode(),
		transport.Header("Content-Type", "application/x-www-form-urlencoded"),
		transport.Header("Authorization", "Basic "+credentials),
	)
	if err != nil {
		return "", fmt.Errorf("%w: ebay oauth: %v", domain.ErrAuthentication, err)
	}

	var auth authResponse
	if err := json.Unmarshal(resp.Body, &auth); err != nil || auth.AccessToken == "" {
		return "", fmt.Errorf("%w: ebay oauth: malformed token response", domain.ErrInvalidResponse)
	}

	ttl := time.Duration(auth.ExpiresIn)*time.Second - tokenMargin
	if ttl > 0 {
		if err := c.tokens.Set(ctx, key, auth.AccessToken, ttl); err != nil {
			c.base.Logger().Warn("token cache write failed", "error", err)
		}
	}

	c.base.Logger().Info("ebay oauth token obtained", "expires_in", auth.ExpiresIn)
	return auth.AccessToken, nil
}

// buildFilter renders the Browse API filter expression
func buildFilter(opts domain.SearchOptions) string {
	filters := []string{"buyingOptions:{FIXED_PRICE}"}

	switch opts.Condition {
	case domain.ConditionNew:
		filters = append(filters, "conditions:{NEW}")
	case domain.ConditionRefurbished:
		filters = append(filters, "conditions:{SELLER_REFURBISHED|MANUFACTURER_REFURBISHED}")
	case domain.ConditionUsed:
		filters = append(filters, "conditions:{USED}")
	}

	hasMin, hasMax := opts.PriceMin.IsPositive(), opts.PriceMax.IsPositive()
	if hasMin || hasMax {
		lower, upper := "", ""
		if hasMin {
			lower = opts.PriceMin.String()
		}
		if hasMax {
			upper = opts.PriceMax.String()
		}
		filters = append(filters, fmt.Sprintf("price:[%s..%s]", lower, upper), "priceCurrency:EUR")
	}

	filters = append(filters, "deliveryCountry:DE")
	return strings.Join(filters, ",")
}

// mapCondition folds eBay condition names into the three known conditions
func mapCondition(s string) domain.Condition {
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "NEW") || strings.Contains(upper, "NEU"):
		return domain.ConditionNew
	case strings.Contains(upper, "REFURBISHED"):
		return domain.ConditionRefurbished
	default:
		return domain.ConditionUsed
	}
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type searchResponse struct {
	Total         int    `json:"total"`
	ItemSummaries []item `json:"itemSummaries"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type item struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	Price      amount `json:"price"`
	ItemWebURL string `json:"itemWebUrl"`
	Condition  string `json:"condition"`
	Seller     struct {
		Username           string `json:"username"`
		FeedbackPercentage string `json:"feedbackPercentage"`
		FeedbackScore      *int   `json:"feedbackScore"`
	} `json:"seller"`
	ShippingOptions []struct {
		ShippingCostType string  `json:"shippingCostType"`
		ShippingCost     *amount `json:"shippingCost"`
	} `json:"shippingOptions"`
}

func (it item) observation(collectedAt time.Time) (domain.PriceObservation, bool) {
	price, err := decimal.NewFromString(it.Price.Value)
	if err != nil || !price.IsPositive() {
		return domain.PriceObservation{}, false
	}

	currency := it.Price.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	o := domain.PriceObservation{
		ProductID:         it.ItemID,
		Platform:          domain.PlatformEbay,
		Title:             it.Title,
		Price:             price,
		Currency:          currency,
		Seller:            it.Seller.Username,
		SellerReviewCount: it.Seller.FeedbackScore,
		Condition:         mapCondition(it.Condition),
		InStock:           true,
		URL:               it.ItemWebURL,
		CollectedAt:       collectedAt,
	}

	if pct, err := strconv.ParseFloat(it.Seller.FeedbackPercentage, 64); err == nil {
		rating := pct / 100
		o.SellerRating = &rating
	}
	if len(it.ShippingOptions) > 0 && it.ShippingOptions[0].ShippingCost != nil {
		if shipping, err := decimal.NewFromString(it.ShippingOptions[0].ShippingCost.Value); err == nil {
			o.Shipping = &shipping
		}
	}

	return o, true
}
