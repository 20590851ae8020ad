package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/content"
)

// StoreConfig configures the store.
type StoreConfig struct {
	// MaxEntries bounds the number of cached entries. When exceeded,
	// least-recently-used entries are evicted until under the bound.
	// Default: 1024
	MaxEntries int

	// Clock overrides the time source. Used by tests.
	Clock func() time.Time
}

// Store is the in-memory content cache.
//
// Every entry carries a fresh window and a stale window:
// createdAt <= freshUntil <= staleUntil. An entry past staleUntil is
// never returned; it is removed lazily on access or by Sweep.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently used
	max     int
	now     func() time.Time
}

type entry struct {
	key        string
	page       *content.Page
	createdAt  time.Time
	freshUntil time.Time
	staleUntil time.Time
	tags       map[string]struct{}
	elem       *list.Element

	// refreshing guards against duplicate concurrent background
	// refreshes for the same key.
	refreshing atomic.Bool
}

// NewStore creates a new store.
func NewStore(config StoreConfig) *Store {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1024
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Store{
		entries: make(map[string]*entry),
		lru:     list.New(),
		max:     config.MaxEntries,
		now:     config.Clock,
	}
}

// Get retrieves a cached page. It never blocks on I/O and classifies
// the entry as Fresh, Stale, or Miss. The returned page is shared and
// must be treated as immutable.
func (s *Store) Get(key string) (*content.Page, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, Miss
	}

	now := s.now()
	if now.After(e.staleUntil) {
		// Past the servable window; remove lazily.
		s.removeLocked(e)
		return nil, Miss
	}

	s.lru.MoveToFront(e.elem)
	if now.Before(e.freshUntil) {
		return e.page, Fresh
	}
	return e.page, Stale
}

// Set stores a page, overwriting any existing entry for the key. A
// stale window shorter than the fresh window is extended to it. Cache
// writes never fail; an invalid key is simply not stored.
func (s *Store) Set(key string, page *content.Page, tags []string, freshTTL, staleTTL time.Duration) {
	if ValidateKey(key) != nil || page == nil || freshTTL <= 0 {
		return
	}
	if staleTTL < freshTTL {
		staleTTL = freshTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := &entry{
		key:        key,
		page:       page,
		createdAt:  now,
		freshUntil: now.Add(freshTTL),
		staleUntil: now.Add(staleTTL),
		tags:       make(map[string]struct{}, len(tags)),
	}
	for _, t := range tags {
		if t != "" {
			e.tags[t] = struct{}{}
		}
	}

	if old, ok := s.entries[key]; ok {
		s.lru.Remove(old.elem)
	}
	e.elem = s.lru.PushFront(e)
	s.entries[key] = e

	s.evictLocked()
}

// Invalidate removes every entry whose tag set contains any of the
// given tags. Returns the number of entries removed.
func (s *Store) Invalidate(tags ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, e := range s.entries {
		for _, t := range tags {
			if _, ok := e.tags[t]; ok {
				s.removeLocked(e)
				removed++
				break
			}
		}
	}
	return removed
}

// InvalidateKeys removes the given keys. Idempotent.
func (s *Store) InvalidateKeys(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			s.removeLocked(e)
			removed++
		}
	}
	return removed
}

// TryRefresh attempts to claim the background-refresh slot for a key.
// It returns true for exactly one caller at a time; the winner must
// call EndRefresh when the refresh completes, success or not.
func (s *Store) TryRefresh(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return e.refreshing.CompareAndSwap(false, true)
}

// EndRefresh releases the background-refresh slot for a key.
func (s *Store) EndRefresh(key string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if ok {
		e.refreshing.Store(false)
	}
}

// Len returns the number of entries, including ones past staleUntil
// that have not been swept yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes all entries past their stale window. Returns the
// number removed. Intended to be driven by a periodic trigger.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, e := range s.entries {
		if now.After(e.staleUntil) {
			s.removeLocked(e)
			removed++
		}
	}
	return removed
}

func (s *Store) removeLocked(e *entry) {
	delete(s.entries, e.key)
	s.lru.Remove(e.elem)
}

// evictLocked drops least-recently-used entries until under the bound.
// Among equally recent candidates the list order preserves insertion,
// so the oldest createdAt goes first.
func (s *Store) evictLocked() {
	for len(s.entries) > s.max {
		back := s.lru.Back()
		if back == nil {
			return
		}
		s.removeLocked(back.Value.(*entry))
	}
}
