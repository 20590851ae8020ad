// Package sheets implements the provider adapter for a spreadsheet
// values API (Google Sheets shaped). Each collection maps to one tab
// whose first row is the header; the values endpoint has no query
// language, so filtering, search, sort and pagination are applied
// in-process via provider.Apply.
package sheets

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

// Config configures the sheets adapter.
type Config struct {
	// ID identifies this provider instance in the chain.
	// Default: "sheets"
	ID string

	// BaseURL is the API root, e.g. "https://sheets.googleapis.com".
	BaseURL string

	// SpreadsheetID is the spreadsheet document id.
	SpreadsheetID string

	// APIKey is appended as the key query parameter.
	APIKey string

	// Tabs maps collection names to sheet tab names.
	Tabs map[string]string

	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Adapter talks to one spreadsheet document.
type Adapter struct {
	id     string
	base   string
	doc    string
	apiKey string
	tabs   map[string]string
	client *http.Client
}

// New creates a sheets adapter.
func New(config Config) (*Adapter, error) {
	if config.BaseURL == "" || config.SpreadsheetID == "" {
		return nil, errors.New("sheets: base URL and spreadsheet id are required")
	}
	if config.ID == "" {
		config.ID = "sheets"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Adapter{
		id:     config.ID,
		base:   strings.TrimRight(config.BaseURL, "/"),
		doc:    config.SpreadsheetID,
		apiKey: config.APIKey,
		tabs:   config.Tabs,
		client: config.HTTPClient,
	}, nil
}

// ID returns the configured provider id.
func (a *Adapter) ID() string {
	return a.id
}

// valuesResponse is the values API envelope.
type valuesResponse struct {
	Values [][]any `json:"values"`
}

// tabData is one loaded tab: the header row plus decoded records. The
// row index of each record is its position in the sheet, needed for
// range-addressed writes.
type tabData struct {
	header  []string
	records []content.Record
	// rowOf maps record id to its 1-based sheet row.
	rowOf map[string]int
}

// FetchAll loads the collection's tab and evaluates the query in-process.
func (a *Adapter) FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error) {
	data, err := a.load(ctx, "fetch_all", collection)
	if err != nil {
		return nil, err
	}
	return provider.Apply(data.records, query), nil
}

// Search evaluates a free-text query in-process.
func (a *Adapter) Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error) {
	data, err := a.load(ctx, "search", collection)
	if err != nil {
		return nil, err
	}
	query.Search = term
	return provider.Apply(data.records, query), nil
}

// FetchByID scans the tab for a matching id.
func (a *Adapter) FetchByID(ctx context.Context, collection, id string) (*content.Record, error) {
	data, err := a.load(ctx, "fetch_by_id", collection)
	if err != nil {
		return nil, err
	}
	rec, ok := provider.FindByID(data.records, id)
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, a.id, "fetch_by_id", fmt.Errorf("id %q", id))
	}
	return &rec, nil
}

// FetchBySlug scans the tab for a matching slug.
func (a *Adapter) FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error) {
	data, err := a.load(ctx, "fetch_by_slug", collection)
	if err != nil {
		return nil, err
	}
	rec, ok := provider.FindBySlug(data.records, slug)
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, a.id, "fetch_by_slug", fmt.Errorf("slug %q", slug))
	}
	return &rec, nil
}

// Create appends a row in header order.
func (a *Adapter) Create(ctx context.Context, collection string, data content.Record) (*content.Record, error) {
	tab, err := a.tab("create", collection)
	if err != nil {
		return nil, err
	}
	loaded, err := a.load(ctx, "create", collection)
	if err != nil {
		return nil, err
	}

	row := recordToRow(loaded.header, data)
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?%s",
		a.base, url.PathEscape(a.doc), url.PathEscape(tab), a.params("valueInputOption", "RAW"))

	if err := a.do(ctx, "create", http.MethodPost, endpoint, map[string]any{"values": [][]any{row}}, nil); err != nil {
		return nil, err
	}

	out := make(content.Record, len(data))
	for k, v := range data {
		out[k] = v
	}
	return &out, nil
}

// Update rewrites the record's row range.
func (a *Adapter) Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error) {
	tab, err := a.tab("update", collection)
	if err != nil {
		return nil, err
	}
	loaded, err := a.load(ctx, "update", collection)
	if err != nil {
		return nil, err
	}

	rowIdx, ok := loaded.rowOf[id]
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, a.id, "update", fmt.Errorf("id %q", id))
	}

	current, _ := provider.FindByID(loaded.records, id)
	merged := make(content.Record, len(current)+len(data))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}

	rng := rowRange(tab, rowIdx, len(loaded.header))
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?%s",
		a.base, url.PathEscape(a.doc), url.PathEscape(rng), a.params("valueInputOption", "RAW"))

	row := recordToRow(loaded.header, merged)
	if err := a.do(ctx, "update", http.MethodPut, endpoint, map[string]any{"values": [][]any{row}}, nil); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Delete clears the record's row range. The values API cannot remove
// rows, so a deleted record leaves a blank row behind; blank rows are
// skipped on load.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	tab, err := a.tab("delete", collection)
	if err != nil {
		return err
	}
	loaded, err := a.load(ctx, "delete", collection)
	if err != nil {
		return err
	}

	rowIdx, ok := loaded.rowOf[id]
	if !ok {
		return provider.NewError(provider.KindNotFound, a.id, "delete", fmt.Errorf("id %q", id))
	}

	rng := rowRange(tab, rowIdx, len(loaded.header))
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:clear?%s",
		a.base, url.PathEscape(a.doc), url.PathEscape(rng), a.params())

	return a.do(ctx, "delete", http.MethodPost, endpoint, map[string]any{}, nil)
}

func (a *Adapter) tab(op, collection string) (string, error) {
	tab, ok := a.tabs[collection]
	if !ok {
		return "", provider.NewError(provider.KindNotFound, a.id, op, fmt.Errorf("collection %q has no tab mapping", collection))
	}
	return tab, nil
}

// load fetches and decodes an entire tab.
func (a *Adapter) load(ctx context.Context, op, collection string) (*tabData, error) {
	tab, err := a.tab(op, collection)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?%s",
		a.base, url.PathEscape(a.doc), url.PathEscape(tab), a.params())

	var resp valuesResponse
	if err := a.do(ctx, op, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, provider.NewError(provider.KindMalformed, a.id, op, errors.New("tab has no header row"))
	}

	header := make([]string, len(resp.Values[0]))
	for i, h := range resp.Values[0] {
		header[i] = fmt.Sprintf("%v", h)
	}

	data := &tabData{header: header, rowOf: make(map[string]int)}
	for i, row := range resp.Values[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := make(content.Record, len(header))
		for j, field := range header {
			if j < len(row) {
				rec[field] = row[j]
			}
		}
		data.records = append(data.records, rec)
		if id := rec.ID(); id != "" {
			// Header is row 1; the first data row is row 2.
			data.rowOf[id] = i + 2
		}
	}
	return data, nil
}

func (a *Adapter) params(extra ...string) string {
	params := url.Values{}
	if a.apiKey != "" {
		params.Set("key", a.apiKey)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		params.Set(extra[i], extra[i+1])
	}
	return params.Encode()
}

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

func isBlankRow(row []any) bool {
	for _, cell := range row {
		if fmt.Sprintf("%v", cell) != "" {
			return false
		}
	}
	return true
}

func recordToRow(header []string, rec content.Record) []any {
	row := make([]any, len(header))
	for i, field := range header {
		if v, ok := rec[field]; ok {
			row[i] = v
		} else {
			row[i] = ""
		}
	}
	return row
}

// rowRange builds an A1-notation range covering one full row.
func rowRange(tab string, row, columns int) string {
	return fmt.Sprintf("%s!A%d:%s%d", tab, row, columnLetter(columns), row)
}

func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}

// Ensure Adapter implements provider.Adapter
var _ provider.Adapter = (*Adapter)(nil)
