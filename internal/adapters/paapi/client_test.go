package paapi_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/collector"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/paapi"
	"github.com/prxgr4mmer/ec-index-collector/internal/adapters/transport"
	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

const (
	testAccessKey = "AKIDEXAMPLE"
	testSecretKey = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
	searchTarget  = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.SearchItems"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSigner_Sign(t *testing.T) {
	signer := paapi.Signer{
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Region:    "eu-west-1",
		Host:      "webservices.amazon.de",
	}
	now := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

	headers := signer.Sign(searchTarget, "/paapi5/searchitems", []byte(`{"Keywords":"test"}`), now)

	assert.Equal(t, "20250105T100000Z", headers["x-amz-date"])
	assert.Equal(t, "amz-1.0", headers["content-encoding"])
	assert.Equal(t, searchTarget, headers["x-amz-target"])
	assert.Equal(t,
		"AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20250105/eu-west-1/ProductAdvertisingAPI/aws4_request, "+
			"SignedHeaders=content-encoding;content-type;host;x-amz-date;x-amz-target, "+
			"Signature=ffa995f64523b94be56407df613c43866e0a25fc6c9ede4bf8b4d89e32c7f41d",
		headers["Authorization"],
	)
}

func TestSigner_SignatureChangesWithPayload(t *testing.T) {
	signer := paapi.Signer{AccessKey: "a", SecretKey: "s", Region: "eu-west-1", Host: "h"}
	now := time.Now()

	first := signer.Sign(searchTarget, "/p", []byte("one"), now)
	second := signer.Sign(searchTarget, "/p", []byte("two"), now)

	assert.NotEqual(t, first["Authorization"], second["Authorization"])
}

const searchBody = `{
  "SearchResult": {
    "TotalResultCount": 3,
    "Items": [
      {
        "ASIN": "B0CHX1W1XY",
        "DetailPageURL": "https://www.amazon.de/dp/B0CHX1W1XY",
        "ItemInfo": {"Title": {"DisplayValue": "Vitamin D3 Tropfen 50ml"}},
        "Offers": {"Listings": [{
          "Price": {"Amount": 14.99, "Currency": "EUR"},
          "Condition": {"Value": "New"},
          "DeliveryInfo": {"IsFreeShippingEligible": true},
          "MerchantInfo": {"Name": "Amazon"}
        }]}
      },
      {
        "ASIN": "B000NOOFFER",
        "DetailPageURL": "https://www.amazon.de/dp/B000NOOFFER",
        "ItemInfo": {"Title": {"DisplayValue": "No offer"}}
      },
      {
        "ASIN": "B000USED01",
        "DetailPageURL": "https://www.amazon.de/dp/B000USED01",
        "ItemInfo": {"Title": {"DisplayValue": "Magnesium"}},
        "Offers": {"Listings": [{"Price": {"Amount": 9.5, "Currency": "EUR"}, "Condition": {"Value": "Used"}}]}
      }
    ]
  }
}`

type capturedRequest struct {
	headers http.Header
	body    map[string]any
}

func newServer(t *testing.T, status int, captured *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/paapi5/searchitems", r.URL.Path)
		if captured != nil {
			captured.headers = r.Header.Clone()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}))
	t.Cleanup(server.Close)
	return server
}

func newCollector(endpoint string, cfg paapi.Config) *paapi.Collector {
	cfg.Endpoint = endpoint
	client := transport.New("amazon",
		transport.WithRequestsPerSecond(1000),
		transport.WithMaxRetries(1),
		transport.WithLogger(quietLogger()),
	)
	return paapi.New(cfg, client,
		paapi.WithQueryDelay(0),
		paapi.WithBaseOptions(collector.WithLogger(quietLogger())),
	)
}

func configured() paapi.Config {
	return paapi.Config{AccessKey: testAccessKey, SecretKey: testSecretKey, PartnerTag: "ecindex-21"}
}

func TestCollector_SearchSendsSignedRequest(t *testing.T) {
	captured := &capturedRequest{}
	server := newServer(t, http.StatusOK, captured)
	c := newCollector(server.URL, configured())

	observations, err := c.Search(context.Background(), "vitamin d3", domain.SearchOptions{
		MaxResults: 50,
		Condition:  domain.ConditionNew,
		PriceMin:   decimal.NewFromInt(5),
		PriceMax:   decimal.RequireFromString("80.5"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(captured.headers.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/"))
	assert.Equal(t, searchTarget, captured.headers.Get("X-Amz-Target"))
	assert.Equal(t, "amz-1.0", captured.headers.Get("Content-Encoding"))

	assert.Equal(t, "ecindex-21", captured.body["PartnerTag"])
	assert.Equal(t, "Associates", captured.body["PartnerType"])
	assert.Equal(t, "vitamin d3", captured.body["Keywords"])
	assert.Equal(t, "All", captured.body["SearchIndex"])
	assert.Equal(t, float64(10), captured.body["ItemCount"])
	assert.Equal(t, float64(500), captured.body["MinPrice"])
	assert.Equal(t, float64(8050), captured.body["MaxPrice"])
	assert.Equal(t, "New", captured.body["Condition"])

	require.Len(t, observations, 2)
	first := observations[0]
	assert.Equal(t, "B0CHX1W1XY", first.ProductID)
	assert.Equal(t, "Vitamin D3 Tropfen 50ml", first.Title)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("14.99")))
	assert.Equal(t, domain.ConditionNew, first.Condition)
	require.NotNil(t, first.Shipping)
	assert.True(t, first.Shipping.IsZero())
	assert.Equal(t, "Amazon", first.Seller)

	assert.Equal(t, domain.ConditionUsed, observations[1].Condition)
	assert.Nil(t, observations[1].Shipping)
}

func TestCollector_SearchRateLimited(t *testing.T) {
	server := newServer(t, http.StatusTooManyRequests, nil)
	c := newCollector(server.URL, configured())

	_, err := c.Search(context.Background(), "vitamin", domain.SearchOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCollector_CollectSkipsWithoutCredentials(t *testing.T) {
	cfg := configured()
	cfg.PartnerTag = ""
	c := newCollector("http://127.0.0.1:1", cfg)

	result := c.Collect(context.Background(), domain.DefaultBenchmarks()[1])

	assert.False(t, c.Configured())
	assert.Equal(t, domain.OutcomeSkipped, result.Outcome)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not configured")
	assert.Empty(t, result.Observations)
}

func TestCollector_CollectFiltersCondition(t *testing.T) {
	server := newServer(t, http.StatusOK, nil)
	c := newCollector(server.URL, configured())

	cfg := domain.DefaultBenchmarks()[1]
	cfg.SearchQueries = []string{"vitamin d3 tropfen"}

	result := c.Collect(context.Background(), cfg)

	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	require.Len(t, result.Observations, 1)
	assert.Equal(t, "B0CHX1W1XY", result.Observations[0].ProductID)
}
