package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config defines retry configuration
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // Random jitter factor (0-1)

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// ExponentialConfig returns a policy that allows maxAttempts attempts in total
// and waits 2^attempt seconds after the n-th failed attempt.
func ExponentialConfig(maxAttempts int) Config {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Config{
		MaxRetries:     maxAttempts - 1,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     2 * time.Minute,
		Multiplier:     2.0,
	}
}

// RetryableError wraps an error that should be retried
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// Do executes a function with retry logic
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult executes a function with retry logic and returns a result
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(cfg, attempt)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr, backoff)
			}
			if err := sleep(ctx, cfg, backoff); err != nil {
				return result, err
			}
		}

		var err error
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Only retry if error is retryable
		if !IsRetryable(err) {
			return result, err
		}
	}

	return result, lastErr
}

func sleep(ctx context.Context, cfg Config, d time.Duration) error {
	if cfg.Sleep != nil {
		return cfg.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1))

	// Apply max backoff
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	// Apply jitter (random value between -jitter% and +jitter%)
	if cfg.Jitter > 0 {
		jitter := backoff * cfg.Jitter * (rand.Float64()*2 - 1)
		backoff += jitter
	}

	// Ensure backoff is not negative
	if backoff < 0 {
		backoff = float64(cfg.InitialBackoff)
	}

	return time.Duration(backoff)
}
