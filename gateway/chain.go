package gateway

import (
	"context"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/observe"
	"github.com/PetroPricesnearMe/content-gateway/provider"
	"github.com/PetroPricesnearMe/content-gateway/resilience"
)

// Entry pairs a provider adapter with its resilience wrapper.
type Entry struct {
	Adapter provider.Adapter
	Wrapper *resilience.Wrapper
}

// Chain tries providers in priority order until one succeeds.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: entries are tried strictly in the order given; a success
//   short-circuits the rest.
// - Errors: when every entry fails the returned error is a *ChainError
//   carrying each provider's failure in order.
type Chain struct {
	entries []Entry
	mw      *observe.Middleware
}

// NewChain creates a chain over the given entries. Entries without a
// wrapper get one with default settings.
func NewChain(entries ...Entry) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyChain
	}
	for i := range entries {
		if entries[i].Wrapper == nil {
			entries[i].Wrapper = resilience.NewWrapper(resilience.WrapperConfig{})
		}
	}
	return &Chain{entries: entries}, nil
}

// WithMiddleware instruments every provider call through the chain.
func (c *Chain) WithMiddleware(mw *observe.Middleware) *Chain {
	c.mw = mw
	return c
}

// Entries returns the chain's entries in priority order.
func (c *Chain) Entries() []Entry {
	return c.entries
}

// call runs one provider call through the entry's wrapper and, when
// configured, the observability middleware.
func (c *Chain) call(ctx context.Context, entry Entry, op, collection string, fn func(ctx context.Context) (any, error)) (any, error) {
	run := func(ctx context.Context, _ observe.OpMeta) (any, error) {
		var result any
		err := entry.Wrapper.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			result, callErr = fn(ctx)
			return callErr
		})
		return result, err
	}

	if c.mw != nil {
		run = c.mw.Wrap(run)
	}
	return run(ctx, observe.OpMeta{
		Op:         op,
		Collection: collection,
		Provider:   entry.Adapter.ID(),
	})
}

// execute walks the chain until a call succeeds.
func (c *Chain) execute(ctx context.Context, op, collection string, fn func(ctx context.Context, a provider.Adapter) (any, error)) (any, error) {
	chainErr := &ChainError{Op: op, Collection: collection}

	for _, entry := range c.entries {
		adapter := entry.Adapter
		result, err := c.call(ctx, entry, op, collection, func(ctx context.Context) (any, error) {
			return fn(ctx, adapter)
		})
		if err == nil {
			return result, nil
		}
		chainErr.Attempts = append(chainErr.Attempts, Attempt{
			Provider: adapter.ID(),
			Err:      err,
		})
		if ctx.Err() != nil {
			break
		}
	}
	return nil, chainErr
}

// FetchAll fetches a page of records from the first available provider.
func (c *Chain) FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error) {
	result, err := c.execute(ctx, "fetch_all", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.FetchAll(ctx, collection, query)
	})
	if err != nil {
		return nil, err
	}
	return result.(*content.Page), nil
}

// FetchByID fetches one record by id from the first available provider.
func (c *Chain) FetchByID(ctx context.Context, collection, id string) (*content.Record, error) {
	result, err := c.execute(ctx, "fetch_by_id", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.FetchByID(ctx, collection, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*content.Record), nil
}

// FetchBySlug fetches one record by slug from the first available
// provider.
func (c *Chain) FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error) {
	result, err := c.execute(ctx, "fetch_by_slug", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.FetchBySlug(ctx, collection, slug)
	})
	if err != nil {
		return nil, err
	}
	return result.(*content.Record), nil
}

// Search runs a free-text search on the first available provider.
func (c *Chain) Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error) {
	result, err := c.execute(ctx, "search", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.Search(ctx, collection, term, query)
	})
	if err != nil {
		return nil, err
	}
	return result.(*content.Page), nil
}

// Create writes a record through the first available provider.
// Mutations do not fan out: the record lands on whichever provider
// accepted it.
func (c *Chain) Create(ctx context.Context, collection string, data content.Record) (*content.Record, error) {
	result, err := c.execute(ctx, "create", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.Create(ctx, collection, data)
	})
	if err != nil {
		return nil, err
	}
	return result.(*content.Record), nil
}

// Update patches a record through the first available provider.
func (c *Chain) Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error) {
	result, err := c.execute(ctx, "update", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.Update(ctx, collection, id, data)
	})
	if err != nil {
		return nil, err
	}
	return result.(*content.Record), nil
}

// Delete removes a record through the first available provider.
func (c *Chain) Delete(ctx context.Context, collection, id string) error {
	_, err := c.execute(ctx, "delete", collection, func(ctx context.Context, a provider.Adapter) (any, error) {
		return nil, a.Delete(ctx, collection, id)
	})
	return err
}
