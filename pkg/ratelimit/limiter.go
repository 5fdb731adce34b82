package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces permitted calls at least 1/rps apart.
// Callers are served one at a time; the next caller waits until the previous
// permit is old enough.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewLimiter creates a limiter for the given requests per second.
// A non-positive rate disables spacing.
func NewLimiter(requestsPerSecond float64) *Limiter {
	var interval time.Duration
	if requestsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return &Limiter{interval: interval}
}

// Interval returns the minimum spacing between permits.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks until a permit is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		wait := l.interval - time.Since(l.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.last = time.Now()
	return nil
}
