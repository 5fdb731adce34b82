package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prxgr4mmer/ec-index-collector/pkg/ratelimit"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStore_AllowWithinLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := ratelimit.NewStore(2, time.Minute, ratelimit.WithClock(clock.Now))

	d := store.Allow("10.0.0.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d = store.Allow("10.0.0.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = store.Allow("10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, clock.now.Add(time.Minute), d.ResetAt)

	// other keys have their own window
	assert.True(t, store.Allow("10.0.0.2").Allowed)
}

func TestStore_WindowResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := ratelimit.NewStore(1, time.Minute, ratelimit.WithClock(clock.Now))

	assert.True(t, store.Allow("k").Allowed)
	assert.False(t, store.Allow("k").Allowed)

	clock.Advance(time.Minute + time.Second)
	assert.True(t, store.Allow("k").Allowed)
}

func TestStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := ratelimit.NewStore(5, time.Minute, ratelimit.WithClock(clock.Now))

	store.Allow("a")
	clock.Advance(30 * time.Second)
	store.Allow("b")
	assert.Equal(t, 2, store.Len())

	clock.Advance(45 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}
