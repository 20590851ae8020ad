package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/content"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func page(n int) *content.Page {
	return &content.Page{
		Data:     []content.Record{{"id": fmt.Sprintf("st-%03d", n)}},
		Total:    1,
		Page:     1,
		PageSize: 20,
	}
}

func TestStore_GetMissFreshStale(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})

	if _, res := store.Get("k"); res != Miss {
		t.Fatalf("empty store: got %s, want miss", res)
	}

	store.Set("k", page(1), []string{"stations"}, time.Minute, 10*time.Minute)

	got, res := store.Get("k")
	if res != Fresh {
		t.Fatalf("inside fresh window: got %s, want fresh", res)
	}
	if got.Data[0].ID() != "st-001" {
		t.Errorf("wrong page returned: %v", got.Data[0])
	}

	clock.Advance(2 * time.Minute)
	if _, res := store.Get("k"); res != Stale {
		t.Fatalf("past freshUntil: got %s, want stale", res)
	}

	clock.Advance(20 * time.Minute)
	if _, res := store.Get("k"); res != Miss {
		t.Fatalf("past staleUntil: got %s, want miss", res)
	}
	if store.Len() != 0 {
		t.Error("entry past staleUntil should be removed on access")
	}
}

func TestStore_SetExtendsShortStaleWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})

	// staleTTL shorter than freshTTL must be extended, never inverted.
	store.Set("k", page(1), nil, 10*time.Minute, time.Minute)

	clock.Advance(9 * time.Minute)
	if _, res := store.Get("k"); res != Fresh {
		t.Error("entry should still be fresh inside the fresh window")
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})

	store.Set("k", page(1), nil, time.Minute, time.Hour)
	store.Set("k", page(2), nil, time.Minute, time.Hour)

	got, _ := store.Get("k")
	if got.Data[0].ID() != "st-002" {
		t.Errorf("overwrite lost: got %v", got.Data[0])
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStore_InvalidateByTag(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})

	store.Set("stations-p1", page(1), []string{"stations"}, time.Minute, time.Hour)
	store.Set("stations-p2", page(2), []string{"stations"}, time.Minute, time.Hour)
	store.Set("suburbs-p1", page(3), []string{"suburbs"}, time.Minute, time.Hour)

	if n := store.Invalidate("stations"); n != 2 {
		t.Errorf("Invalidate removed %d entries, want 2", n)
	}
	if _, res := store.Get("stations-p1"); res != Miss {
		t.Error("tagged entry should be gone")
	}
	if _, res := store.Get("suburbs-p1"); res != Fresh {
		t.Error("entry with a different tag must not be touched")
	}
}

func TestStore_InvalidateKeys(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})

	store.Set("a", page(1), nil, time.Minute, time.Hour)
	store.Set("b", page(2), nil, time.Minute, time.Hour)

	if n := store.InvalidateKeys("a", "missing"); n != 1 {
		t.Errorf("InvalidateKeys removed %d, want 1", n)
	}
	if _, res := store.Get("b"); res != Fresh {
		t.Error("untouched key should survive")
	}
}

func TestStore_LRUEviction(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{MaxEntries: 3, Clock: clock.Now})

	store.Set("a", page(1), nil, time.Minute, time.Hour)
	store.Set("b", page(2), nil, time.Minute, time.Hour)
	store.Set("c", page(3), nil, time.Minute, time.Hour)

	// Touch "a" so "b" becomes least recently used.
	store.Get("a")

	store.Set("d", page(4), nil, time.Minute, time.Hour)

	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}
	if _, res := store.Get("b"); res != Miss {
		t.Error("least-recently-used entry should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, res := store.Get(k); res == Miss {
			t.Errorf("entry %q should have survived eviction", k)
		}
	}
}

func TestStore_TryRefreshIsExclusive(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})
	store.Set("k", page(1), nil, time.Minute, time.Hour)

	var wg sync.WaitGroup
	var won int64
	var mu sync.Mutex

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.TryRefresh("k") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("%d goroutines claimed the refresh slot, want exactly 1", won)
	}

	store.EndRefresh("k")
	if !store.TryRefresh("k") {
		t.Error("refresh slot should be claimable again after EndRefresh")
	}
}

func TestStore_TryRefreshMissingKey(t *testing.T) {
	store := NewStore(StoreConfig{})
	if store.TryRefresh("nope") {
		t.Error("TryRefresh on a missing key should return false")
	}
	store.EndRefresh("nope") // must not panic
}

func TestStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{Clock: clock.Now})

	store.Set("short", page(1), nil, time.Minute, 2*time.Minute)
	store.Set("long", page(2), nil, time.Minute, time.Hour)

	clock.Advance(5 * time.Minute)
	if n := store.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStore_SetRejectsBadInput(t *testing.T) {
	store := NewStore(StoreConfig{})

	store.Set("", page(1), nil, time.Minute, time.Hour)
	store.Set("ok", nil, nil, time.Minute, time.Hour)
	store.Set("ok", page(1), nil, 0, time.Hour)

	if store.Len() != 0 {
		t.Errorf("invalid sets must not store entries, Len() = %d", store.Len())
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(StoreConfig{MaxEntries: 64})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k-%d", j%32)
				store.Set(key, page(j), []string{"stations"}, time.Minute, time.Hour)
				store.Get(key)
				if j%50 == 0 {
					store.Invalidate("stations")
				}
			}
		}(i)
	}
	wg.Wait()
}
