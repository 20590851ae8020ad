// Package baserow implements the provider adapter for a Baserow-style
// tabular data service. The query model is pushed down to the rows API:
// filters become filter__field__equal parameters, sort becomes
// order_by, and pagination maps to page/size.
package baserow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/provider"
)

// Config configures the baserow adapter.
type Config struct {
	// ID identifies this provider instance in the chain.
	// Default: "baserow"
	ID string

	// BaseURL is the API root, e.g. "https://api.baserow.io".
	BaseURL string

	// Token is the database token sent as "Authorization: Token ...".
	Token string

	// Tables maps collection names to table identifiers.
	Tables map[string]string

	// HTTPClient overrides the transport. Default: http.Client with a
	// 30s safety timeout; the resilience layer applies the real
	// per-attempt deadline via context.
	HTTPClient *http.Client
}

// Adapter talks to one Baserow database.
type Adapter struct {
	id     string
	base   string
	token  string
	tables map[string]string
	client *http.Client
}

// New creates a baserow adapter.
func New(config Config) (*Adapter, error) {
	if config.BaseURL == "" {
		return nil, errors.New("baserow: base URL is required")
	}
	if config.ID == "" {
		config.ID = "baserow"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Adapter{
		id:     config.ID,
		base:   strings.TrimRight(config.BaseURL, "/"),
		token:  config.Token,
		tables: config.Tables,
		client: config.HTTPClient,
	}, nil
}

// ID returns the configured provider id.
func (a *Adapter) ID() string {
	return a.id
}

// listResponse is the rows API page envelope.
type listResponse struct {
	Count   int              `json:"count"`
	Results []content.Record `json:"results"`
}

// FetchAll returns one page of rows from the collection's table.
func (a *Adapter) FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error) {
	return a.listRows(ctx, "fetch_all", collection, query)
}

// Search returns a page of rows matching a free-text query.
func (a *Adapter) Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error) {
	query.Search = term
	return a.listRows(ctx, "search", collection, query)
}

func (a *Adapter) listRows(ctx context.Context, op, collection string, query content.Query) (*content.Page, error) {
	table, err := a.table(op, collection)
	if err != nil {
		return nil, err
	}
	q := query.Normalize()

	params := url.Values{}
	params.Set("user_field_names", "true")
	params.Set("page", fmt.Sprintf("%d", q.Page))
	params.Set("size", fmt.Sprintf("%d", q.PageSize))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Sort != nil && q.Sort.Field != "" {
		field := q.Sort.Field
		if q.Sort.Order == content.SortDesc {
			field = "-" + field
		}
		params.Set("order_by", field)
	}
	if len(q.Fields) > 0 {
		params.Set("include", strings.Join(q.Fields, ","))
	}
	if len(q.Filters) > 0 {
		params.Set("filter_type", "AND")
		for field, value := range q.Filters {
			params.Set("filter__"+field+"__equal", fmt.Sprintf("%v", value))
		}
	}

	endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/?%s", a.base, table, params.Encode())

	var resp listResponse
	if err := a.do(ctx, op, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) > q.PageSize {
		resp.Results = resp.Results[:q.PageSize]
	}
	return &content.Page{
		Data:     resp.Results,
		Total:    resp.Count,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// FetchByID returns a single row.
func (a *Adapter) FetchByID(ctx context.Context, collection, id string) (*content.Record, error) {
	table, err := a.table("fetch_by_id", collection)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/%s/?user_field_names=true", a.base, table, url.PathEscape(id))

	var rec content.Record
	if err := a.do(ctx, "fetch_by_id", http.MethodGet, endpoint, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchBySlug resolves a row via an equality filter on the slug field.
func (a *Adapter) FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error) {
	page, err := a.listRows(ctx, "fetch_by_slug", collection, content.Query{
		Page:     1,
		PageSize: 1,
		Filters:  map[string]any{"slug": slug},
	})
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, provider.NewError(provider.KindNotFound, a.id, "fetch_by_slug", fmt.Errorf("slug %q", slug))
	}
	return &page.Data[0], nil
}

// Create inserts a row.
func (a *Adapter) Create(ctx context.Context, collection string, data content.Record) (*content.Record, error) {
	table, err := a.table("create", collection)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/?user_field_names=true", a.base, table)

	var rec content.Record
	if err := a.do(ctx, "create", http.MethodPost, endpoint, data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update patches a row.
func (a *Adapter) Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error) {
	table, err := a.table("update", collection)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/%s/?user_field_names=true", a.base, table, url.PathEscape(id))

	var rec content.Record
	if err := a.do(ctx, "update", http.MethodPatch, endpoint, data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a row.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	table, err := a.table("delete", collection)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/%s/", a.base, table, url.PathEscape(id))
	return a.do(ctx, "delete", http.MethodDelete, endpoint, nil, nil)
}

func (a *Adapter) table(op, collection string) (string, error) {
	table, ok := a.tables[collection]
	if !ok {
		return "", provider.NewError(provider.KindNotFound, a.id, op, fmt.Errorf("collection %q has no table mapping", collection))
	}
	return table, nil
}

// do performs one HTTP exchange and maps the outcome onto the provider
// error taxonomy.
func (a *Adapter) do(ctx context.Context, op, method, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return provider.NewError(provider.KindMalformed, a.id, op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return provider.NewError(provider.KindMalformed, a.id, op, err)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Token "+a.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return provider.NewError(provider.KindTimeout, a.id, op, err)
		}
		return provider.NewError(provider.KindUnavailable, a.id, op, err)
	}
	defer resp.Body.Close()

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return provider.NewError(kind, a.id, op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.NewError(provider.KindMalformed, a.id, op, err)
	}
	return nil
}

func classifyStatus(status int) (provider.Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.KindAuthFailure, true
	case status == http.StatusNotFound:
		return provider.KindNotFound, true
	case status == http.StatusTooManyRequests:
		return provider.KindRateLimited, true
	case status >= 500:
		return provider.KindUnavailable, true
	default:
		return provider.KindMalformed, true
	}
}

// Ensure Adapter implements provider.Adapter
var _ provider.Adapter = (*Adapter)(nil)
