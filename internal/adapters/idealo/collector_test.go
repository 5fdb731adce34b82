package idealo_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/idealo"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/scrape"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

const resultPage = `<html><body>
<div class="sr-resultList__item">
  <a href="/preisvergleich/OffersOfProduct/203713829_-galaxy-a15.html">
    <div class="sr-productSummary__title">Samsung Galaxy A15 128GB</div>
  </a>
  <div class="sr-detailedPriceInfo__price">ab 139,90&nbsp;€</div>
</div>
<div class="sr-resultList__item">
  <div class="sr-productSummary__title">Motorola Moto G54</div>
  <div class="sr-detailedPriceInfo__price">ab 169,00 €</div>
</div>
<div class="sr-resultList__item">
  <div class="sr-productSummary__title">Sold out</div>
</div>
</body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newCollector(t *testing.T, handler http.HandlerFunc, sleeps *sleepRecorder) *idealo.Collector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := transport.New("idealo",
		transport.WithRequestsPerSecond(1000),
		transport.WithMaxRetries(1),
		transport.WithLogger(quietLogger()),
	)
	return idealo.New(scrape.NewHTTPFetcher(client),
		scrape.WithBaseURL(server.URL),
		scrape.WithSessionOptions(
			scrape.WithLogger(quietLogger()),
			scrape.WithSleep(sleeps.sleep),
			scrape.WithRandom(func() float64 { return 0 }),
		),
		scrape.WithBaseOptions(collector.WithLogger(quietLogger())),
	)
}

func TestCollector_SearchParsesResultList(t *testing.T) {
	var gotPath, gotQuery string
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(resultPage))
	}, &sleepRecorder{})

	observations, err := c.Search(context.Background(), "samsung galaxy a", domain.SearchOptions{MaxResults: 15})

	require.NoError(t, err)
	assert.Equal(t, "/preisvergleich/MainSearchProductCategory.html", gotPath)
	assert.Equal(t, "samsung galaxy a", gotQuery)
	require.Len(t, observations, 2)

	assert.Equal(t, scrape.HashID("idealo", "Samsung Galaxy A15 128GB"), observations[0].ProductID)
	assert.True(t, observations[0].Price.Equal(decimal.RequireFromString("139.90")))
	assert.Contains(t, observations[0].URL, "/preisvergleich/OffersOfProduct/203713829_-galaxy-a15.html")
	assert.Equal(t, "Motorola Moto G54", observations[1].Title)
	assert.Equal(t, domain.PlatformIdealo, observations[1].Platform)
}

func TestCollector_CollectRunsFirstTwoQueriesWithPause(t *testing.T) {
	var requests atomic.Int32
	sleeps := &sleepRecorder{}
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(resultPage))
	}, sleeps)

	cfg := domain.DefaultBenchmarks()[0]

	result := c.Collect(context.Background(), cfg)

	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, []time.Duration{15 * time.Second}, sleeps.waits)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	assert.Len(t, result.Observations, 2)
}

func TestCollector_RateLimitedSearchCoolsDown(t *testing.T) {
	sleeps := &sleepRecorder{}
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, sleeps)

	observations, err := c.Search(context.Background(), "phone", domain.SearchOptions{})

	require.NoError(t, err)
	assert.Empty(t, observations)
	assert.Equal(t, []time.Duration{60 * time.Second}, sleeps.waits)
}
