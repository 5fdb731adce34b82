// Package geizhals collects lowest offer prices from the Geizhals price
// comparison search.
package geizhals

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/scrape"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/pkg/pricetext"
)

const (
	// DefaultBaseURL is the public site
	DefaultBaseURL = "https://geizhals.de"

	// Transport settings for the site
	RequestsPerSecond = 0.5
	MaxAttempts       = 2
	Timeout           = 30 * time.Second

	maxResults = 25

	itemSelector   = ".productlist__product, .listview__item, .product"
	nameSelector   = ".productlist__name, .listview__name, .product__name, a[data-name]"
	priceSelector  = ".productlist__price, .listview__price, .price"
	offersSelector = ".productlist__offerscount, .listview__offers"
)

var (
	// the id closes the path; slugs may contain model numbers such as -a15
	productIDPattern = regexp.MustCompile(`(?:/|-a)(\d+)(?:\.html)?(?:[?#][^/]*)?$`)
	digitsPattern    = regexp.MustCompile(`\d+`)
)

// Collector implements ports.Collector for Geizhals
type Collector struct {
	baseURL string
	runner  *scrape.Runner
}

// New creates a Geizhals collector loading pages through fetcher
func New(fetcher ports.PageFetcher, opts ...scrape.Option) *Collector {
	settings := scrape.ApplyOptions(scrape.Settings{
		BaseURL: DefaultBaseURL,
		SessionOpts: []scrape.SessionOption{
			scrape.WithPacing(scrape.Pacing{
				BetweenQueries: scrape.Range{Min: 2500 * time.Millisecond, Max: 2500 * time.Millisecond},
				AfterError:     scrape.Range{Min: 2500 * time.Millisecond, Max: 2500 * time.Millisecond},
				Cooldown:       scrape.DefaultCooldown,
			}),
		},
		BaseOpts: []collector.Option{collector.WithMaxResults(maxResults)},
	}, opts)

	return &Collector{
		baseURL: settings.BaseURL,
		runner:  scrape.NewRunner(domain.PlatformGeizhals, fetcher, settings),
	}
}

// Platform returns the Geizhals platform
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformGeizhals
}

// Collect runs every benchmark query
func (c *Collector) Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult {
	return c.runner.Collect(ctx, cfg, c)
}

// Search loads one result list
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
	u := c.baseURL + "/?fs=" + url.QueryEscape(query) + "&in="
	if opts.PriceMin.IsPositive() {
		u += "&bpmin=" + opts.PriceMin.String()
	}
	if opts.PriceMax.IsPositive() {
		u += "&bpmax=" + opts.PriceMax.String()
	}
	return u
}

func (c *Collector) parse(doc *goquery.Document, limit int) []domain.PriceObservation {
	if limit <= 0 {
		limit = maxResults
	}
	collectedAt := c.runner.Base().Now().UTC()
	out := make([]domain.PriceObservation, 0, limit)

	doc.Find(itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}

		title := scrape.FirstText(item, nameSelector)
		if title == "" {
			title = scrape.FirstAttr(item, "a", "data-name")
		}
		price, ok := pricetext.Parse(scrape.FirstText(item, priceSelector))
		if title == "" || !ok {
			return true
		}

		link := scrape.FirstAttr(item, "a", "href")
		offers := 0
		if m := digitsPattern.FindString(item.Find(offersSelector).Text()); m != "" {
			offers, _ = strconv.Atoi(m)
		}

		out = append(out, domain.PriceObservation{
			ProductID:   productID(title, link),
			Platform:    domain.PlatformGeizhals,
			Title:       title,
			Price:       price,
			Currency:    domain.DefaultCurrency,
			Condition:   domain.ConditionNew,
			InStock:     offers > 0,
			URL:         scrape.ResolveURL(c.baseURL, link),
			CollectedAt: collectedAt,
		})
		return true
	})

	c.runner.Base().Logger().Debug("parsed search results", "products", len(out))
	return out
}

// productID prefers the numeric Geizhals id from the link
func productID(title, link string) string {
	if m := productIDPattern.FindStringSubmatch(link); m != nil {
		return "gh_" + m[1]
	}
	return scrape.HashID("gh", title)
}
