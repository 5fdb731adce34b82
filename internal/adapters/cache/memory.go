// Package cache provides token caches for credentialed collectors.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryTokenCache keeps tokens in process memory
type MemoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// MemoryOption configures a MemoryTokenCache
type MemoryOption func(*MemoryTokenCache)

// WithClock replaces the time source used for expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryTokenCache) {
		c.now = now
	}
}

// NewMemoryTokenCache creates an empty in-memory cache
func NewMemoryTokenCache(opts ...MemoryOption) *MemoryTokenCache {
	c := &MemoryTokenCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the token stored under key unless it has expired
func (c *MemoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.token, true, nil
}

// Set stores token under key for ttl
func (c *MemoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{token: token, expiresAt: c.now().Add(ttl)}
	return nil
}
