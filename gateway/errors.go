package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PetroPricesnearMe/content-gateway/provider"
)

// Sentinel errors.
var (
	// ErrEmptyChain indicates a chain was constructed with no providers.
	ErrEmptyChain = errors.New("gateway: provider chain is empty")

	// ErrNoSuchCollection indicates the collection is not served by any
	// provider.
	ErrNoSuchCollection = errors.New("gateway: unknown collection")
)

// Attempt records one failed provider call during chain failover.
type Attempt struct {
	Provider string
	Err      error
}

// ChainError is returned when every provider in the chain failed. The
// attempts are ordered by chain priority.
type ChainError struct {
	Op         string
	Collection string
	Attempts   []Attempt
}

func (e *ChainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway: all providers failed for %s %s:", e.Op, e.Collection)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, " %s: %v;", a.Provider, a.Err)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Unwrap exposes every attempt's error for errors.Is / errors.As.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// AllNotFound reports whether every attempt failed with a not-found
// error, meaning the record simply does not exist anywhere.
func (e *ChainError) AllNotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !provider.IsKind(a.Err, provider.KindNotFound) {
			return false
		}
	}
	return true
}
