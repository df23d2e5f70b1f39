package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"forge/internal/logging"
)

// RetryConfig holds retry settings shared by all adapters.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// CalculateBackoff returns baseDelay * 2^attempt capped at maxDelay, plus up
// to 25% jitter.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	if delay/4 <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(delay/4)))
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent.
func withRetry(ctx context.Context, cfg RetryConfig, provider string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(cfg.RetryDelay, attempt-1, cfg.MaxDelay)
			logging.Info("retrying provider request", "provider", provider, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return err
		}
		logging.Warn("provider request failed, will retry", "provider", provider, "attempt", attempt, "error", err)
	}
	if cfg.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
