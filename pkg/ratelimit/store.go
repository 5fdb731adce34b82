package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a Store.Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Store counts calls per key in fixed windows.
// Expired windows stay in memory until Sweep removes them.
type Store struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	entries map[string]*bucket
	now     func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock replaces the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store allowing limit calls per key in each period.
func NewStore(limit int, period time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		limit:   limit,
		period:  period,
		entries: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records a call for key and reports whether it fits the window.
func (s *Store) Allow(key string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.entries[key]
	if !ok || now.After(w.resetAt) {
		w = &bucket{count: 1, resetAt: now.Add(s.period)}
		s.entries[key] = w
		return Decision{Allowed: true, Remaining: s.limit - 1, ResetAt: w.resetAt}
	}

	if w.count < s.limit {
		w.count++
		return Decision{Allowed: true, Remaining: s.limit - w.count, ResetAt: w.resetAt}
	}

	return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
}

// Sweep drops expired windows and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.entries {
		if now.After(w.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
