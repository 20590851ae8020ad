// Package cache provides the in-process content cache with
// stale-while-revalidate semantics.
//
// It provides a Store holding pages with a fresh window and a stale
// window, tag-based bulk invalidation, LRU eviction under a bounded
// entry count, SHA-256-based key derivation, and per-collection TTL
// policies.
package cache
