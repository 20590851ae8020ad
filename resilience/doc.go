// Package resilience wraps provider calls so that a slow or failing
// backend degrades gracefully instead of cascading failures into page
// renders.
//
// # Patterns
//
//   - Circuit Breaker: stops calling a consistently failing provider
//     for a cooldown period before probing it again.
//
//   - Retry: retries transient failures with exponential backoff and
//     jitter. Structural failures (auth, not-found, malformed) consume
//     no retry budget.
//
//   - Timeout: bounds every provider attempt with a hard deadline.
//
//   - Rate Limiter: client-side token bucket for quota-sensitive
//     backends.
//
//   - Bulkhead: caps concurrent background refreshes.
//
// # Usage
//
// The Wrapper composes the patterns in the order the gateway needs:
// circuit breaker outermost, then retry, then the per-attempt timeout.
//
//	w := resilience.NewWrapper(resilience.WrapperConfig{
//	    Timeout: 2 * time.Second,
//	    Retry:   resilience.RetryConfig{MaxAttempts: 3},
//	    Circuit: resilience.CircuitBreakerConfig{FailureThreshold: 5},
//	})
//
//	err := w.Execute(ctx, func(ctx context.Context) error {
//	    _, err := adapter.FetchAll(ctx, "stations", query)
//	    return err
//	})
package resilience
