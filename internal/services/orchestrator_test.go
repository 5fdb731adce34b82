package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
	"github.com/prxgr4mmer/ec-index-collector/internal/ports"
	"github.com/prxgr4mmer/ec-index-collector/internal/services"
)

func TestOrchestrator_ResultsFollowPlatformOrder(t *testing.T) {
	ebay := &fakeCollector{platform: domain.PlatformEbay, prices: []string{"10"}}
	amazon := &fakeCollector{platform: domain.PlatformAmazon, prices: []string{"20", "30"}}
	metrics := &countingMetrics{}

	o := services.NewOrchestrator([]ports.Collector{ebay, amazon}, metrics, newTestLogger())
	cfg := testBenchmark("ECI-TST", domain.PlatformAmazon, domain.PlatformIdealo, domain.PlatformEbay)

	results := o.CollectBenchmark(context.Background(), cfg)

	require.Len(t, results, 3)
	assert.Equal(t, domain.PlatformAmazon, results[0].Platform)
	assert.Equal(t, 2, results[0].ValidProducts)

	assert.Equal(t, domain.PlatformIdealo, results[1].Platform)
	assert.Equal(t, domain.OutcomeSkipped, results[1].Outcome)
	require.Len(t, results[1].Errors, 1)
	assert.Contains(t, results[1].Errors[0], "no collector registered for platform")

	assert.Equal(t, domain.PlatformEbay, results[2].Platform)
	assert.Equal(t, domain.OutcomeCompleted, results[2].Outcome)

	assert.Len(t, metrics.collections, 3)
	assert.Equal(t, []domain.Platform{domain.PlatformAmazon, domain.PlatformEbay}, o.Platforms())
}

func TestOrchestrator_RecoversPanics(t *testing.T) {
	broken := &fakeCollector{platform: domain.PlatformGeizhals, panicMsg: "boom"}
	healthy := &fakeCollector{platform: domain.PlatformEbay, prices: []string{"10"}}

	o := services.NewOrchestrator([]ports.Collector{broken, healthy}, nil, newTestLogger())
	results := o.CollectBenchmark(context.Background(), testBenchmark("ECI-TST", domain.PlatformGeizhals, domain.PlatformEbay))

	require.Len(t, results, 2)
	assert.Equal(t, domain.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, []string{"collector panic: boom"}, results[0].Errors)
	assert.Empty(t, results[0].Observations)
	assert.Equal(t, domain.OutcomeCompleted, results[1].Outcome)
}

func TestOrchestrator_NilResultFails(t *testing.T) {
	c := &fakeCollector{platform: domain.PlatformIdealo, nilResult: true}

	o := services.NewOrchestrator([]ports.Collector{c}, nil, newTestLogger())
	results := o.CollectBenchmark(context.Background(), testBenchmark("ECI-TST", domain.PlatformIdealo))

	require.Len(t, results, 1)
	assert.Equal(t, domain.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, []string{"collector returned no result"}, results[0].Errors)
}

func TestOrchestrator_RunsPlatformsConcurrently(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	a := &fakeCollector{platform: domain.PlatformAmazon, prices: []string{"10"}, started: started, release: release}
	b := &fakeCollector{platform: domain.PlatformEbay, prices: []string{"10"}, started: started, release: release}

	o := services.NewOrchestrator([]ports.Collector{a, b}, nil, newTestLogger())

	done := make(chan []*domain.CollectionResult, 1)
	go func() {
		done <- o.CollectBenchmark(context.Background(), testBenchmark("ECI-TST", domain.PlatformAmazon, domain.PlatformEbay))
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("collectors did not run concurrently")
		}
	}
	close(release)

	select {
	case results := <-done:
		assert.Len(t, results, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("collection did not finish")
	}
}
