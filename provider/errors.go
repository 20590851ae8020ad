package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind int

const (
	// KindTimeout means the backend did not answer within the deadline.
	KindTimeout Kind = iota
	// KindUnavailable means the backend could not be reached or answered
	// with a server error.
	KindUnavailable
	// KindRateLimited means the backend rejected the call due to quota.
	KindRateLimited
	// KindAuthFailure means the configured credential was rejected.
	KindAuthFailure
	// KindNotFound means the collection or record does not exist.
	KindNotFound
	// KindMalformed means the backend response could not be decoded into
	// the uniform content model.
	KindMalformed
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthFailure:
		return "auth_failure"
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Transient reports whether a failure of this kind is worth retrying.
// Auth failures, missing records and undecodable responses are
// structural: repeating the identical call cannot succeed.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Op       string
	Err      error
}

// Error returns the formatted error string.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s %s: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s %s", e.Provider, e.Op, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified provider error.
func NewError(kind Kind, providerID, op string, err error) *Error {
	return &Error{Kind: kind, Provider: providerID, Op: op, Err: err}
}

// IsTransient reports whether err is a provider error with a transient
// kind. Unclassified errors are not transient.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind.Transient()
	}
	return false
}

// IsKind reports whether err is a provider error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
