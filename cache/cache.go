package cache

import (
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Result classifies the outcome of a Store lookup.
type Result int

const (
	// Miss means no servable entry exists for the key.
	Miss Result = iota
	// Fresh means the entry is inside its fresh window.
	Fresh
	// Stale means the entry is past freshUntil but still servable; the
	// caller should return it and refresh in the background.
	Stale
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Miss:
		return "miss"
	default:
		return "unknown"
	}
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
