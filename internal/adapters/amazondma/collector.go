// Package amazondma collects offers from the public Amazon marketplace search
// pages. It is used when no Product Advertising API access is configured.
package amazondma

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/scrape"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/pkg/pricetext"
)

const (
	// DefaultBaseURL is the German marketplace
	DefaultBaseURL = "https://www.amazon.de"

	// Transport settings for the marketplace
	RequestsPerSecond = 0.15
	MaxAttempts       = 2
	Timeout           = 25 * time.Second

	maxQueries = 3
	maxResults = 20

	itemSelector  = `[data-component-type="s-search-result"], .s-result-item[data-asin]`
	titleSelector = "h2 span, .a-size-medium.a-text-normal"
)

var (
	// star icons carry the rating in their class, e.g. a-star-small-4-5
	starSelectors    = []string{".a-icon-star-small", ".a-icon-star", ".a-icon-star-mini"}
	starClassPattern = regexp.MustCompile(`a-star(?:-small|-mini)?-(\d)(?:-(\d))?`)

	// screen reader text, e.g. "4,5 von 5 Sternen"
	ratingTextSelector = ".a-icon-alt"
	ratingTextPattern  = regexp.MustCompile(`^(\d)(?:[,.](\d))?\s`)
)

// Collector implements ports.Collector for the Amazon marketplace pages
type Collector struct {
	baseURL string
	runner  *scrape.Runner
}

// New creates a marketplace collector loading pages through fetcher
func New(fetcher ports.PageFetcher, opts ...scrape.Option) *Collector {
	defaults := scrape.Settings{
		BaseURL: DefaultBaseURL,
		BaseOpts: []collector.Option{
			collector.WithMaxQueries(maxQueries),
			collector.WithMaxResults(maxResults),
		},
	}
	settings := scrape.ApplyOptions(defaults, opts)

	// the landing page depends on the final base URL
	settings.SessionOpts = append([]scrape.SessionOption{
		scrape.WithLandingURL(settings.BaseURL + "/"),
		scrape.WithBlockMarkers("captcha", "robot check"),
		scrape.WithPacing(scrape.Pacing{
			WarmUp:         scrape.Range{Min: 3 * time.Second, Max: 5 * time.Second},
			BetweenQueries: scrape.Range{Min: 8 * time.Second, Max: 15 * time.Second},
			AfterError:     scrape.Range{Min: 15 * time.Second, Max: 30 * time.Second},
			Cooldown:       scrape.DefaultCooldown,
		}),
	}, settings.SessionOpts...)

	return &Collector{
		baseURL: settings.BaseURL,
		runner:  scrape.NewRunner(domain.PlatformAmazon, fetcher, settings),
	}
}

// Platform returns the Amazon platform
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformAmazon
}

// Collect warms a session and runs the first benchmark queries
func (c *Collector) Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult {
	return c.runner.Collect(ctx, cfg, c)
}

// Search loads one search result page
func (c *Collector) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
	doc, err := c.runner.Load(ctx, c.searchURL(query, opts))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []domain.PriceObservation{}, nil
	}
	return c.parse(doc, opts.MaxResults), nil
}

func (c *Collector) searchURL(query string, opts domain.SearchOptions) string {
	params := url.Values{}
	params.Set("k", query)

	if opts.PriceMin.IsPositive() || opts.PriceMax.IsPositive() {
		lower := opts.PriceMin
		upper := opts.PriceMax
		if !upper.IsPositive() {
			upper = decimal.NewFromInt(99999)
		}
		params.Set("rh", "p_36:"+cents(lower)+"-"+cents(upper))
	}

	return c.baseURL + "/s?" + params.Encode()
}

func cents(d decimal.Decimal) string {
	return d.Shift(2).Round(0).String()
}

func (c *Collector) parse(doc *goquery.Document, limit int) []domain.PriceObservation {
	if limit <= 0 {
		limit = maxResults
	}
	collectedAt := c.runner.Base().Now().UTC()
	out := make([]domain.PriceObservation, 0, limit)
	seen := make(map[string]bool)

	doc.Find(itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}

		asin, _ := item.Attr("data-asin")
		if len(asin) < 5 || seen[asin] {
			return true
		}

		title := scrape.FirstText(item, titleSelector)
		price, ok := itemPrice(item)
		if title == "" || !ok {
			return true
		}
		seen[asin] = true

		link := scrape.FirstAttr(item, "h2 a", "href")
		if link == "" {
			link = "/dp/" + asin
		}

		out = append(out, domain.PriceObservation{
			ProductID:   asin,
			Platform:    domain.PlatformAmazon,
			Title:       title,
			Price:       price,
			Currency:    domain.DefaultCurrency,
			Condition:   domain.ConditionNew,
			InStock:     true,
			Rating:      itemRating(item),
			URL:         scrape.ResolveURL(c.baseURL, link),
			CollectedAt: collectedAt,
		})
		return true
	})

	return out
}

// itemRating reads the star rating from the icon class, falling back to the
// icon's screen reader text. Unrated items return nil.
func itemRating(item *goquery.Selection) *float64 {
	for _, sel := range starSelectors {
		if m := starClassPattern.FindStringSubmatch(scrape.FirstAttr(item, sel, "class")); m != nil {
			return parseRating(m[1], m[2])
		}
	}
	if m := ratingTextPattern.FindStringSubmatch(scrape.FirstText(item, ratingTextSelector)); m != nil {
		return parseRating(m[1], m[2])
	}
	return nil
}

func parseRating(whole, fraction string) *float64 {
	if fraction == "" {
		fraction = "0"
	}
	rating, err := strconv.ParseFloat(whole+"."+fraction, 64)
	if err != nil || rating > 5 {
		return nil
	}
	return &rating
}

// itemPrice reads the split whole/fraction price, falling back to the
// screen reader text
func itemPrice(item *goquery.Selection) (decimal.Decimal, bool) {
	whole := scrape.FirstText(item, ".a-price-whole")
	if whole != "" {
		return pricetext.ParseParts(whole, scrape.FirstText(item, ".a-price-fraction"))
	}
	return pricetext.Parse(scrape.FirstText(item, ".a-price .a-offscreen"))
}
