package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/provider"
)

// WrapperConfig configures a per-provider resilience wrapper.
type WrapperConfig struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// Retry configures the retry schedule. RetryIf defaults to
	// retrying transient provider errors and attempt timeouts only.
	Retry RetryConfig

	// Circuit configures the provider's circuit breaker. IsFailure
	// defaults to counting transient failures and timeouts; structural
	// errors say nothing about provider availability and never open
	// the circuit.
	Circuit CircuitBreakerConfig

	// RateLimiter optionally bounds the client-side call rate ahead of
	// the circuit breaker.
	RateLimiter *RateLimiter
}

// Wrapper makes one logical call to one provider robust to transient
// failure without masking permanent failure. Composition order is
// circuit breaker outermost, then retry, then the per-attempt timeout,
// so one exhausted retry sequence counts as one circuit failure.
type Wrapper struct {
	timeout *Timeout
	retry   *Retry
	breaker *CircuitBreaker
	limiter *RateLimiter
}

// Retryable reports whether an error from a provider attempt is worth
// retrying: transient provider errors and attempt timeouts are; auth
// failures, missing records and undecodable responses are not.
func Retryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return provider.IsTransient(err)
}

// NewWrapper creates a wrapper for a single provider.
func NewWrapper(config WrapperConfig) *Wrapper {
	if config.Retry.RetryIf == nil {
		config.Retry.RetryIf = Retryable
	}
	if config.Circuit.IsFailure == nil {
		config.Circuit.IsFailure = func(err error) bool {
			return err != nil && Retryable(err)
		}
	}

	return &Wrapper{
		timeout: NewTimeout(TimeoutConfig{Timeout: config.Timeout}),
		retry:   NewRetry(config.Retry),
		breaker: NewCircuitBreaker(config.Circuit),
		limiter: config.RateLimiter,
	}
}

// Execute runs op through rate limiter, circuit breaker, retry, and
// per-attempt timeout, innermost last.
func (w *Wrapper) Execute(ctx context.Context, op func(context.Context) error) error {
	attempt := func(ctx context.Context) error {
		return w.timeout.Execute(ctx, op)
	}
	call := func(ctx context.Context) error {
		return w.retry.Execute(ctx, attempt)
	}

	run := func(ctx context.Context) error {
		return w.breaker.Execute(ctx, call)
	}

	if w.limiter != nil {
		return w.limiter.Execute(ctx, run)
	}
	return run(ctx)
}

// Breaker exposes the provider's circuit breaker for health reporting.
func (w *Wrapper) Breaker() *CircuitBreaker {
	return w.breaker
}
