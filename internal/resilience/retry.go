package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryConfig tunes [Retry]'s exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Default: 250ms.
	InitialBackoff time.Duration

	// Factor multiplies the backoff after each failed attempt. Default: 2.
	Factor float64
}

// Retry calls fn until it succeeds, shouldRetry(err) returns false, ctx is
// cancelled, or MaxAttempts is exhausted, backing off exponentially between
// attempts. It returns the last error encountered.
func Retry(ctx context.Context, cfg RetryConfig, shouldRetry func(error) bool, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 250 * time.Millisecond
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 2
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * cfg.Factor)
	}
	return lastErr
}
