package content

import "fmt"

// Sort orders for Query.Sort.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination bounds applied by Query.Normalize.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Record is a single content item. Providers translate their native row
// or document format into a Record; the gateway never inspects fields
// beyond the well-known id and slug.
//
// Records handed out by the gateway are shared with the cache and must
// be treated as immutable by callers.
type Record map[string]any

// ID returns the record identifier, or empty string if absent.
func (r Record) ID() string {
	return r.stringField("id")
}

// Slug returns the record slug, or empty string if absent.
func (r Record) Slug() string {
	return r.stringField("slug")
}

func (r Record) stringField(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		// JSON numbers decode as float64; ids are often numeric.
		return fmt.Sprintf("%.0f", s)
	case int:
		return fmt.Sprintf("%d", s)
	case int64:
		return fmt.Sprintf("%d", s)
	default:
		return ""
	}
}

// Page is one page of results from a provider or the cache.
//
// Invariant: 0 <= len(Data) <= PageSize, and Total >= len(Data) unless
// Page is beyond the end of the result set (then Data is empty).
type Page struct {
	Data     []Record `json:"data"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// SinglePage wraps one record in a page. Used for by-id and by-slug
// lookups so the cache handles a single entry shape.
func SinglePage(rec Record) *Page {
	return &Page{
		Data:     []Record{rec},
		Total:    1,
		Page:     1,
		PageSize: 1,
	}
}

// Sort describes the requested result ordering.
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// Query is the uniform query model. It shapes the provider request and
// seeds both the cache key and the tag set of the resulting cache entry.
type Query struct {
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Filters  map[string]any `json:"filters,omitempty"`
	Sort     *Sort          `json:"sort,omitempty"`
	Search   string         `json:"search,omitempty"`
	Fields   []string       `json:"fields,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
}

// Normalize returns a copy of q with pagination defaults applied and
// the page size clamped. Sort order defaults to ascending.
func (q Query) Normalize() Query {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Sort != nil && q.Sort.Order != SortDesc {
		s := *q.Sort
		s.Order = SortAsc
		q.Sort = &s
	}
	return q
}

// Offset returns the zero-based row offset for the normalized query.
func (q Query) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}
