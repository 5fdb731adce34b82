package scrape_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/scrape"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

type countingFetcher struct {
	urls []string
}

func (f *countingFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Page, error) {
	f.urls = append(f.urls, url)
	return &domain.Page{URL: url, StatusCode: 200}, nil
}

func TestLimitedFetcher_SpacesCalls(t *testing.T) {
	inner := &countingFetcher{}
	fetcher := scrape.NewLimitedFetcher(inner, ratelimit.NewLimiter(20))

	start := time.Now()
	for _, u := range []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"} {
		page, err := fetcher.Fetch(context.Background(), u, nil)
		require.NoError(t, err)
		assert.Equal(t, u, page.URL)
	}

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, inner.urls, 3)
}

func TestLimitedFetcher_CancelledWhileWaiting(t *testing.T) {
	inner := &countingFetcher{}
	fetcher := scrape.NewLimitedFetcher(inner, ratelimit.NewLimiter(0.1))

	_, err := fetcher.Fetch(context.Background(), "https://a.test/1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = fetcher.Fetch(ctx, "https://a.test/2", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, inner.urls, 1)
}
