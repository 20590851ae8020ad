package provider

import (
	"context"

	"github.com/PetroPricesnearMe/content-gateway/content"
)

// Adapter is the gateway contract implemented once per backend.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: every method honors cancellation/deadlines; network I/O is
//   the only point where a call may block.
// - Errors: failures are reported as *Error with the appropriate Kind;
//   adapters must not catch and suppress them.
type Adapter interface {
	// ID returns the configured identifier for this provider instance.
	ID() string

	// FetchAll returns one page of records from a collection.
	FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error)

	// FetchByID returns a single record by identifier.
	// A missing record is a *Error with KindNotFound.
	FetchByID(ctx context.Context, collection, id string) (*content.Record, error)

	// FetchBySlug returns a single record by slug.
	FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error)

	// Create inserts a record and returns it as stored by the backend.
	Create(ctx context.Context, collection string, data content.Record) (*content.Record, error)

	// Update modifies an existing record and returns the stored result.
	Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error)

	// Delete removes a record.
	Delete(ctx context.Context, collection, id string) error

	// Search returns a page of records matching a free-text query.
	Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error)
}
