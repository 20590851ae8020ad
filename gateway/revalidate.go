package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/observe"
)

// RevalidatorConfig configures time-based cache revalidation.
type RevalidatorConfig struct {
	// Intervals maps collection names to their revalidation period.
	// Collections absent from the map use DefaultInterval.
	Intervals map[string]time.Duration

	// DefaultInterval applies to collections without an explicit
	// interval. Zero disables time-based revalidation for them.
	DefaultInterval time.Duration

	// Eager refetches the collection's default page right after
	// invalidating it, so the next reader hits a warm cache.
	Eager bool

	// Logger logs revalidation activity. Default: no logging.
	Logger observe.Logger
}

// Revalidator periodically drops cached collection entries so readers
// pick up upstream edits, and serves on-demand revalidation requests.
type Revalidator struct {
	gw     *Gateway
	config RevalidatorConfig
	logger observe.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewRevalidator creates a Revalidator over the gateway.
func NewRevalidator(gw *Gateway, config RevalidatorConfig) *Revalidator {
	logger := config.Logger
	if logger == nil {
		logger = observe.NoopLogger()
	}
	return &Revalidator{
		gw:     gw,
		config: config,
		logger: logger,
	}
}

// Start launches one revalidation loop per configured collection.
// Starting an already started revalidator is a no-op.
func (r *Revalidator) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.stop = make(chan struct{})

	for collection, interval := range r.config.Intervals {
		if interval <= 0 {
			interval = r.config.DefaultInterval
		}
		if interval <= 0 {
			continue
		}
		r.wg.Add(1)
		go r.loop(collection, interval)
	}
}

// Stop halts all revalidation loops and waits for in-flight work.
func (r *Revalidator) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Revalidator) loop(collection string, interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.RevalidateCollection(context.Background(), collection)
		}
	}
}

// RevalidateCollection drops the collection's cached entries and, when
// eager mode is on, refetches its default page.
func (r *Revalidator) RevalidateCollection(ctx context.Context, collection string) int {
	removed := r.gw.InvalidateCollection(collection)
	r.logger.Debug(ctx, "collection revalidated",
		observe.Field{Key: "collection", Value: collection},
		observe.Field{Key: "removed", Value: removed},
	)

	if r.config.Eager {
		if _, err := r.gw.FetchAll(ctx, collection, content.Query{}); err != nil {
			r.logger.Warn(ctx, "eager refetch failed",
				observe.Field{Key: "collection", Value: collection},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	return removed
}

// Revalidate serves an on-demand request to drop entries by tag or key.
func (r *Revalidator) Revalidate(ctx context.Context, tags, keys []string) int {
	return r.gw.Revalidate(ctx, tags, keys)
}
