// Package gateway composes the cache, the resilience layer and the
// provider chain into one content read/write surface.
//
// Reads follow a stale-while-revalidate state machine: a fresh cache
// hit is served directly, a stale hit is served immediately while at
// most one background refresh refetches the entry, and a miss fetches
// synchronously with concurrent misses for the same key collapsed into
// a single provider call. Mutations write through the chain and
// invalidate the affected cache entries.
package gateway

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PetroPricesnearMe/content-gateway/cache"
	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/observe"
	"github.com/PetroPricesnearMe/content-gateway/resilience"
)

// DefaultRefreshTimeout bounds one background refresh.
const DefaultRefreshTimeout = 30 * time.Second

// Config configures a Gateway.
type Config struct {
	// Chain is the provider failover chain (required).
	Chain *Chain

	// Store is the cache store. Nil disables caching entirely.
	Store *cache.Store

	// Keyer builds cache keys. Default: cache.NewDefaultKeyer().
	Keyer cache.Keyer

	// Policy sets per-collection TTLs. Default: cache.DefaultPolicy().
	Policy cache.Policy

	// RefreshBulkhead optionally caps concurrent background refreshes.
	RefreshBulkhead *resilience.Bulkhead

	// RefreshTimeout bounds one background refresh.
	// Default: DefaultRefreshTimeout.
	RefreshTimeout time.Duration

	// Logger logs refresh outcomes. Default: no logging.
	Logger observe.Logger

	// Metrics records cache and refresh telemetry. Default: none.
	Metrics observe.Metrics
}

// Gateway is the content read/write surface.
type Gateway struct {
	chain          *Chain
	store          *cache.Store
	keyer          cache.Keyer
	policy         cache.Policy
	refreshGuard   *resilience.Bulkhead
	refreshTimeout time.Duration
	logger         observe.Logger
	metrics        observe.Metrics
	flight         singleflight.Group
}

// New creates a Gateway.
func New(config Config) (*Gateway, error) {
	if config.Chain == nil {
		return nil, ErrEmptyChain
	}
	if config.Keyer == nil {
		config.Keyer = cache.NewDefaultKeyer()
	}
	if config.Policy.Default == (cache.TTL{}) && config.Policy.Collections == nil {
		config.Policy = cache.DefaultPolicy()
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = DefaultRefreshTimeout
	}
	if config.Logger == nil {
		config.Logger = observe.NoopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NoopMetrics()
	}

	return &Gateway{
		chain:          config.Chain,
		store:          config.Store,
		keyer:          config.Keyer,
		policy:         config.Policy,
		refreshGuard:   config.RefreshBulkhead,
		refreshTimeout: config.RefreshTimeout,
		logger:         config.Logger,
		metrics:        config.Metrics,
	}, nil
}

// FetchAll serves a page of records for a collection.
func (g *Gateway) FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error) {
	query = query.Normalize()
	return g.fetchPage(ctx, collection, "fetch_all", query, func(ctx context.Context) (*content.Page, error) {
		return g.chain.FetchAll(ctx, collection, query)
	})
}

// Search serves a free-text search result page.
func (g *Gateway) Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error) {
	query = query.Normalize()
	query.Search = term
	return g.fetchPage(ctx, collection, "search", query, func(ctx context.Context) (*content.Page, error) {
		return g.chain.Search(ctx, collection, term, query)
	})
}

// FetchByID serves one record. A nil record with a nil error means the
// record does not exist on any provider.
func (g *Gateway) FetchByID(ctx context.Context, collection, id string) (*content.Record, error) {
	return g.fetchOne(ctx, collection, "fetch_by_id", id, func(ctx context.Context) (*content.Record, error) {
		return g.chain.FetchByID(ctx, collection, id)
	})
}

// FetchBySlug serves one record located by slug. A nil record with a
// nil error means the record does not exist on any provider.
func (g *Gateway) FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error) {
	return g.fetchOne(ctx, collection, "fetch_by_slug", slug, func(ctx context.Context) (*content.Record, error) {
		return g.chain.FetchBySlug(ctx, collection, slug)
	})
}

// fetchPage runs the stale-while-revalidate state machine for a page
// operation.
func (g *Gateway) fetchPage(ctx context.Context, collection, op string, query content.Query, fetch func(ctx context.Context) (*content.Page, error)) (*content.Page, error) {
	if g.store == nil || !g.policy.ShouldCache() {
		return fetch(ctx)
	}

	key, err := g.keyer.Key(collection, op, query)
	if err != nil {
		return fetch(ctx)
	}

	page, result := g.store.Get(key)
	g.metrics.RecordCacheResult(ctx, collection, result.String())

	switch result {
	case cache.Fresh:
		return page, nil

	case cache.Stale:
		g.startRefresh(key, collection, query.Tags, fetch)
		return page, nil

	default: // cache.Miss
		v, err, _ := g.flight.Do(key, func() (any, error) {
			fetched, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			g.storePage(key, collection, query.Tags, nil, fetched)
			return fetched, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(*content.Page), nil
	}
}

// fetchOne runs the same state machine for a single-record lookup,
// caching the record as a one-element page. A chain failure where every
// provider reported not-found maps to a nil record.
func (g *Gateway) fetchOne(ctx context.Context, collection, op, selector string, fetch func(ctx context.Context) (*content.Record, error)) (*content.Record, error) {
	fetchPage := func(ctx context.Context) (*content.Page, error) {
		rec, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return content.SinglePage(*rec), nil
	}

	if g.store == nil || !g.policy.ShouldCache() {
		return g.mapSingle(fetchPage(ctx))
	}

	query := content.Query{Filters: map[string]any{"_selector": selector}}
	key, err := g.keyer.Key(collection, op, query)
	if err != nil {
		return g.mapSingle(fetchPage(ctx))
	}

	recordTag := collection + "/" + selector

	page, result := g.store.Get(key)
	g.metrics.RecordCacheResult(ctx, collection, result.String())

	switch result {
	case cache.Fresh:
		return pageRecord(page), nil

	case cache.Stale:
		g.startRefresh(key, collection, []string{recordTag}, fetchPage)
		return pageRecord(page), nil

	default:
		v, err, _ := g.flight.Do(key, func() (any, error) {
			fetched, err := fetchPage(ctx)
			if err != nil {
				return nil, err
			}
			g.storePage(key, collection, nil, []string{recordTag}, fetched)
			return fetched, nil
		})
		if err != nil {
			return g.mapSingle(nil, err)
		}
		return pageRecord(v.(*content.Page)), nil
	}
}

// mapSingle converts an all-not-found chain failure into a nil record.
func (g *Gateway) mapSingle(page *content.Page, err error) (*content.Record, error) {
	if err != nil {
		var chainErr *ChainError
		if errors.As(err, &chainErr) && chainErr.AllNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return pageRecord(page), nil
}

func pageRecord(page *content.Page) *content.Record {
	if page == nil || len(page.Data) == 0 {
		return nil
	}
	rec := page.Data[0]
	return &rec
}

// storePage writes a fetched page into the cache with the collection
// tag plus any extra tags.
func (g *Gateway) storePage(key, collection string, queryTags, extraTags []string, page *content.Page) {
	ttl := g.policy.TTLFor(collection)
	tags := make([]string, 0, len(queryTags)+len(extraTags)+1)
	tags = append(tags, collection)
	tags = append(tags, queryTags...)
	tags = append(tags, extraTags...)
	g.store.Set(key, page, tags, ttl.Fresh, ttl.Stale)
}

// startRefresh launches at most one background refetch for a stale
// entry. The refresh runs on a detached context so the caller's request
// finishing does not cancel it.
func (g *Gateway) startRefresh(key, collection string, tags []string, fetch func(ctx context.Context) (*content.Page, error)) {
	if !g.store.TryRefresh(key) {
		return
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
		defer cancel()

		page, err := fetch(ctx)
		g.metrics.RecordRefresh(ctx, collection, err)
		if err != nil {
			// Serve stale until the stale window lapses.
			g.logger.Warn(ctx, "background refresh failed",
				observe.Field{Key: "cache_key", Value: key},
				observe.Field{Key: "collection", Value: collection},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return
		}
		g.storePage(key, collection, tags, nil, page)
	}

	go func() {
		// The slot is released here, not in run: a rejected refresh
		// must still free the key for the next stale hit.
		defer g.store.EndRefresh(key)

		if g.refreshGuard != nil {
			ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
			defer cancel()
			_ = g.refreshGuard.Execute(ctx, func(context.Context) error {
				run()
				return nil
			})
			return
		}
		run()
	}()
}

// Create writes a record through the chain and invalidates the
// collection's cached pages.
func (g *Gateway) Create(ctx context.Context, collection string, data content.Record) (*content.Record, error) {
	rec, err := g.chain.Create(ctx, collection, data)
	if err != nil {
		return nil, err
	}
	g.invalidateRecord(collection, recID(rec))
	return rec, nil
}

// Update patches a record through the chain and invalidates both the
// collection's pages and the record's own entry.
func (g *Gateway) Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error) {
	rec, err := g.chain.Update(ctx, collection, id, data)
	if err != nil {
		return nil, err
	}
	g.invalidateRecord(collection, id)
	return rec, nil
}

// Delete removes a record through the chain and invalidates both the
// collection's pages and the record's own entry.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	if err := g.chain.Delete(ctx, collection, id); err != nil {
		return err
	}
	g.invalidateRecord(collection, id)
	return nil
}

// Revalidate drops every cache entry matching the given tags or keys
// and returns how many entries were removed.
func (g *Gateway) Revalidate(ctx context.Context, tags, keys []string) int {
	if g.store == nil {
		return 0
	}
	removed := 0
	if len(tags) > 0 {
		removed += g.store.Invalidate(tags...)
	}
	if len(keys) > 0 {
		removed += g.store.InvalidateKeys(keys...)
	}
	g.logger.Info(ctx, "cache revalidated",
		observe.Field{Key: "tags", Value: tags},
		observe.Field{Key: "keys", Value: keys},
		observe.Field{Key: "removed", Value: removed},
	)
	return removed
}

// InvalidateCollection drops every cache entry for one collection.
func (g *Gateway) InvalidateCollection(collection string) int {
	if g.store == nil {
		return 0
	}
	return g.store.Invalidate(collection)
}

// Chain returns the gateway's provider chain.
func (g *Gateway) Chain() *Chain {
	return g.chain
}

func (g *Gateway) invalidateRecord(collection, id string) {
	if g.store == nil {
		return
	}
	tags := []string{collection}
	if id != "" {
		tags = append(tags, collection+"/"+id)
	}
	g.store.Invalidate(tags...)
}

func recID(rec *content.Record) string {
	if rec == nil {
		return ""
	}
	return rec.ID()
}
