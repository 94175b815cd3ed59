// Package retry retries transient facilitator failures with exponential backoff.
// It uses Go generics for type-safe retry operations and respects context cancellation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darkhorseone/x402-gate"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (including initial attempt)
	InitialDelay time.Duration // Initial delay between retries
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultConfig provides sensible defaults for facilitator calls.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

// ForRetries returns DefaultConfig allowing maxRetries attempts after the first.
func ForRetries(maxRetries int) Config {
	c := DefaultConfig
	if maxRetries < 0 {
		maxRetries = 0
	}
	c.MaxAttempts = maxRetries + 1
	return c
}

// IsRetryable determines if an error should trigger a retry.
type IsRetryable func(error) bool

// IsTransient retries facilitator connectivity failures. Payment outcomes and
// context cancellation are never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, x402.ErrFacilitatorUnavailable)
}

// WithRetry calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is returned unwrapped so callers can
// surface its message.
func WithRetry[T any](
	ctx context.Context,
	config Config,
	isRetryable IsRetryable,
	fn func() (T, error),
) (T, error) {
	var zero T
	if config.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: MaxAttempts must be at least 1, got %d", config.MaxAttempts)
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			delay = time.Duration(float64(delay) * config.Multiplier)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// WithSimpleRetry retries transient errors using DefaultConfig.
func WithSimpleRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return WithRetry(ctx, DefaultConfig, IsTransient, fn)
}
