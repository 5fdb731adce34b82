// Package idealo collects prices from the idealo price comparison search.
// The site throttles aggressively, so only the first queries of a benchmark
// are run with long pauses in between.
package idealo

import (
	"context"
	"net/url"
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
	DefaultBaseURL = "https://www.idealo.de"

	// Transport settings for the site
	RequestsPerSecond = 0.1
	MaxAttempts       = 1
	Timeout           = 20 * time.Second

	maxQueries = 2
	maxResults = 15

	itemSelector  = ".offerList-item, .sr-resultList__item, [data-testid='product']"
	titleSelector = ".offerList-item-description-title, h3, .sr-productSummary__title"
	priceSelector = ".offerList-item-priceMin, .sr-detailedPriceInfo__price, [class*='price']"
)

// Collector implements ports.Collector for idealo
type Collector struct {
	baseURL string
	runner  *scrape.Runner
}

// New creates an idealo collector loading pages through fetcher
func New(fetcher ports.PageFetcher, opts ...scrape.Option) *Collector {
	settings := scrape.ApplyOptions(scrape.Settings{
		BaseURL: DefaultBaseURL,
		SessionOpts: []scrape.SessionOption{
			scrape.WithPacing(scrape.Pacing{
				BetweenQueries: scrape.Range{Min: 15 * time.Second, Max: 25 * time.Second},
				AfterError:     scrape.Range{Min: 30 * time.Second, Max: 60 * time.Second},
				Cooldown:       scrape.DefaultCooldown,
			}),
		},
		BaseOpts: []collector.Option{
			collector.WithMaxQueries(maxQueries),
			collector.WithMaxResults(maxResults),
		},
	}, opts)

	return &Collector{
		baseURL: settings.BaseURL,
		runner:  scrape.NewRunner(domain.PlatformIdealo, fetcher, settings),
	}
}

// Platform returns the idealo platform
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformIdealo
}

// Collect runs the first benchmark queries
func (c *Collector) Collect(ctx context.Context, cfg domain.BenchmarkConfig) *domain.CollectionResult {
	return c.runner.Collect(ctx, cfg, c)
}

// Search loads one result list. idealo has no price filter parameter; the
// benchmark bounds are applied after parsing.
func (c *Collector) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.PriceObservation, error) {
	u := c.baseURL + "/preisvergleich/MainSearchProductCategory.html?q=" + url.QueryEscape(query)

	doc, err := c.runner.Load(ctx, u)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []domain.PriceObservation{}, nil
	}
	return c.parse(doc, opts.MaxResults), nil
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

		title := scrape.FirstText(item, titleSelector)
		price, ok := pricetext.Parse(scrape.FirstText(item, priceSelector))
		if title == "" || !ok {
			return true
		}

		out = append(out, domain.PriceObservation{
			ProductID:   scrape.HashID("idealo", title),
			Platform:    domain.PlatformIdealo,
			Title:       title,
			Price:       price,
			Currency:    domain.DefaultCurrency,
			Condition:   domain.ConditionNew,
			InStock:     true,
			URL:         scrape.ResolveURL(c.baseURL, scrape.FirstAttr(item, "a", "href")),
			CollectedAt: collectedAt,
		})
		return true
	})

	return out
}
