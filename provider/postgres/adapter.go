// Package postgres implements the provider adapter backed by a
// PostgreSQL table. Records are stored as jsonb rows keyed by
// (collection, id); filters, search, sort and pagination are evaluated
// in-process via provider.Apply after loading the collection.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/provider"
)

var (
	//go:embed create_table.sql
	queryCreateTable string
	//go:embed select_collection.sql
	querySelectCollection string
	//go:embed select_by_id.sql
	querySelectByID string
	//go:embed select_by_slug.sql
	querySelectBySlug string
	//go:embed upsert_record.sql
	queryUpsertRecord string
	//go:embed delete_record.sql
	queryDeleteRecord string
)

// ErrPingFailed is returned when the initial ping to the database fails.
var ErrPingFailed = errors.New("postgres: ping returned error")

// Config configures the postgres adapter.
type Config struct {
	// ID identifies this provider instance in the chain.
	// Default: "postgres"
	ID string

	// CreateTable creates the backing table on startup when true.
	CreateTable bool

	// Clock overrides time.Now, used for row timestamps.
	Clock func() time.Time
}

// Adapter stores content records in one PostgreSQL table.
type Adapter struct {
	id  string
	db  *sql.DB
	now func() time.Time
}

// New creates a postgres adapter over an open database handle. It
// pings the database and optionally creates the backing table.
func New(ctx context.Context, db *sql.DB, config Config) (*Adapter, error) {
	if db == nil {
		return nil, errors.New("postgres: nil database handle")
	}
	if config.ID == "" {
		config.ID = "postgres"
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrPingFailed, err)
	}
	if config.CreateTable {
		if _, err := db.ExecContext(ctx, queryCreateTable); err != nil {
			return nil, fmt.Errorf("postgres: create table: %w", err)
		}
	}

	return &Adapter{
		id:  config.ID,
		db:  db,
		now: config.Clock,
	}, nil
}

// ID returns the configured provider id.
func (a *Adapter) ID() string {
	return a.id
}

// FetchAll loads the collection's rows and evaluates the query
// in-process.
func (a *Adapter) FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error) {
	records, err := a.loadCollection(ctx, "fetch_all", collection)
	if err != nil {
		return nil, err
	}
	return provider.Apply(records, query), nil
}

// Search evaluates a free-text query in-process.
func (a *Adapter) Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error) {
	records, err := a.loadCollection(ctx, "search", collection)
	if err != nil {
		return nil, err
	}
	query.Search = term
	return provider.Apply(records, query), nil
}

// FetchByID reads a single row by primary key.
func (a *Adapter) FetchByID(ctx context.Context, collection, id string) (*content.Record, error) {
	return a.fetchOne(ctx, "fetch_by_id", querySelectByID, collection, id)
}

// FetchBySlug reads a single row by the indexed slug column.
func (a *Adapter) FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error) {
	return a.fetchOne(ctx, "fetch_by_slug", querySelectBySlug, collection, slug)
}

func (a *Adapter) fetchOne(ctx context.Context, op, query, collection, key string) (*content.Record, error) {
	row := a.db.QueryRowContext(ctx, query, collection, key)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, provider.NewError(provider.KindNotFound, a.id, op, fmt.Errorf("%q", key))
		}
		return nil, a.mapError(op, err)
	}

	rec, err := a.decodeRow(op, raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create upserts a new row. The record must carry an id.
func (a *Adapter) Create(ctx context.Context, collection string, data content.Record) (*content.Record, error) {
	id := data.ID()
	if id == "" {
		return nil, provider.NewError(provider.KindMalformed, a.id, "create", errors.New("record has no id"))
	}
	if err := a.upsert(ctx, "create", collection, id, data); err != nil {
		return nil, err
	}
	out := cloneRecord(data)
	return &out, nil
}

// Update merges the patch over the stored row and writes it back.
func (a *Adapter) Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error) {
	current, err := a.FetchByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	merged := cloneRecord(*current)
	for k, v := range data {
		merged[k] = v
	}
	merged["id"] = id

	if err := a.upsert(ctx, "update", collection, id, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Delete removes the row by primary key.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	result, err := a.db.ExecContext(ctx, queryDeleteRecord, collection, id)
	if err != nil {
		return a.mapError("delete", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return provider.NewError(provider.KindNotFound, a.id, "delete", fmt.Errorf("id %q", id))
	}
	return nil
}

func (a *Adapter) upsert(ctx context.Context, op, collection, id string, data content.Record) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return provider.NewError(provider.KindMalformed, a.id, op, err)
	}

	var slug sql.NullString
	if s := data.Slug(); s != "" {
		slug = sql.NullString{String: s, Valid: true}
	}

	_, err = a.db.ExecContext(ctx, queryUpsertRecord, collection, id, slug, raw, a.now().UTC())
	if err != nil {
		return a.mapError(op, err)
	}
	return nil
}

func (a *Adapter) loadCollection(ctx context.Context, op, collection string) ([]content.Record, error) {
	rows, err := a.db.QueryContext(ctx, querySelectCollection, collection)
	if err != nil {
		return nil, a.mapError(op, err)
	}
	defer rows.Close()

	var records []content.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, a.mapError(op, err)
		}
		rec, err := a.decodeRow(op, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, a.mapError(op, err)
	}
	return records, nil
}

func (a *Adapter) decodeRow(op string, raw []byte) (content.Record, error) {
	var rec content.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, provider.NewError(provider.KindMalformed, a.id, op, err)
	}
	return rec, nil
}

// mapError translates database failures to provider error kinds.
func (a *Adapter) mapError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return provider.NewError(provider.KindTimeout, a.id, op, err)
	default:
		return provider.NewError(provider.KindUnavailable, a.id, op, err)
	}
}

func cloneRecord(rec content.Record) content.Record {
	out := make(content.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Ensure Adapter implements provider.Adapter
var _ provider.Adapter = (*Adapter)(nil)
