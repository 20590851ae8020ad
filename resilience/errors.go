package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when a provider is skipped entirely
	// because its circuit breaker is open. It distinguishes "didn't try"
	// from "tried and failed".
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the client-side rate limit
	// is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when a provider attempt exceeds its
	// deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
