package cache

import "time"

// TTL is a fresh/stale window pair. Fresh marks how long an entry is
// served without contacting providers; Stale marks how long past that
// it may still be served while a background refresh runs.
type TTL struct {
	Fresh time.Duration
	Stale time.Duration
}

// Policy configures caching behavior per collection.
type Policy struct {
	// Default is the window pair used when a collection has no override.
	// A zero Fresh disables caching entirely.
	Default TTL

	// Collections overrides the window pair for specific collections.
	Collections map[string]TTL
}

// DefaultPolicy returns the default caching policy.
// Fresh: 5 minutes, Stale: 30 minutes.
func DefaultPolicy() Policy {
	return Policy{
		Default: TTL{Fresh: 5 * time.Minute, Stale: 30 * time.Minute},
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.Default.Fresh > 0
}

// TTLFor returns the window pair for a collection, falling back to the
// default and extending the stale window to at least the fresh window.
func (p Policy) TTLFor(collection string) TTL {
	ttl := p.Default
	if override, ok := p.Collections[collection]; ok {
		ttl = override
	}
	if ttl.Stale < ttl.Fresh {
		ttl.Stale = ttl.Fresh
	}
	return ttl
}
