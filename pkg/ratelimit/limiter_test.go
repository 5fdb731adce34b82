package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

func TestLimiter_SpacesSequentialAcquires(t *testing.T) {
	limiter := ratelimit.NewLimiter(2)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	first := time.Now()
	require.NoError(t, limiter.Acquire(ctx))

	assert.GreaterOrEqual(t, time.Since(first), 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, limiter.Interval())
}

func TestLimiter_FirstAcquireDoesNotWait(t *testing.T) {
	limiter := ratelimit.NewLimiter(0.1)

	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_ZeroRateDisablesSpacing(t *testing.T) {
	limiter := ratelimit.NewLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_AcquireHonoursContext(t *testing.T) {
	limiter := ratelimit.NewLimiter(0.5)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
