package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sixfold-ai/memcore/internal/errs"
)

// GuardConfig tunes a [Guard]'s breaker, retry, and per-attempt timeout.
type GuardConfig struct {
	Breaker CircuitBreakerConfig
	Retry   RetryConfig

	// Timeout bounds each individual attempt. Zero disables the timeout.
	Timeout time.Duration
}

// Guard wraps a single provider handle with the standard resilience
// pipeline: per-attempt timeout, then circuit breaker, then retry with
// backoff for errors classified as [errs.Transient].
type Guard struct {
	breaker *CircuitBreaker
	retry   RetryConfig
	timeout time.Duration
}

// NewGuard creates a Guard from cfg. Zero-value fields fall back to
// [NewCircuitBreaker] and [Retry]'s own defaults.
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{
		breaker: NewCircuitBreaker(cfg.Breaker),
		retry:   cfg.Retry,
		timeout: cfg.Timeout,
	}
}

// Execute runs fn under the guard's timeout, breaker, and retry policy.
func (g *Guard) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	shouldRetry := func(err error) bool {
		var ce *errs.CoreError
		if !errors.As(err, &ce) {
			return false
		}
		return ce.Kind == errs.ProviderError && ce.Provider == errs.Transient
	}

	return Retry(ctx, g.retry, shouldRetry, func() error {
		return g.breaker.Execute(func() error {
			callCtx := ctx
			if g.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return fn(callCtx)
		})
	})
}

// State reports the guard's underlying circuit breaker state.
func (g *Guard) State() State { return g.breaker.State() }
