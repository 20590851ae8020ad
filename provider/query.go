package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PetroPricesnearMe/content-gateway/content"
)

// Apply evaluates a uniform query against an in-memory record set:
// filters, free-text search, sort, field projection, then pagination.
// Backends without server-side filtering (sheets, dynamo, postgres)
// translate their fetched result set through it; baserow pushes the
// query down to its REST API instead.
func Apply(records []content.Record, query content.Query) *content.Page {
	q := query.Normalize()

	matched := make([]content.Record, 0, len(records))
	for _, rec := range records {
		if !matchesFilters(rec, q.Filters) {
			continue
		}
		if q.Search != "" && !matchesSearch(rec, q.Search) {
			continue
		}
		matched = append(matched, rec)
	}

	if q.Sort != nil && q.Sort.Field != "" {
		sortRecords(matched, q.Sort)
	}

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	data := matched[start:end]
	if len(q.Fields) > 0 {
		data = projectFields(data, q.Fields)
	}

	return &content.Page{
		Data:     data,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

// matchesFilters applies equality filters with loose string coercion,
// so a numeric backend value matches its query-string form.
func matchesFilters(rec content.Record, filters map[string]any) bool {
	for field, want := range filters {
		got, ok := rec[field]
		if !ok {
			return false
		}
		if !looseEqual(got, want) {
			return false
		}
	}
	return true
}

func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	return coerceString(a) == coerceString(b)
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// matchesSearch does a case-insensitive substring match across all
// string-valued fields.
func matchesSearch(rec content.Record, term string) bool {
	term = strings.ToLower(term)
	for _, v := range rec {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func sortRecords(records []content.Record, s *content.Sort) {
	desc := s.Order == content.SortDesc
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i][s.Field], records[j][s.Field]
		less := compareValues(a, b)
		if desc {
			return !less && !looseEqual(a, b)
		}
		return less
	})
}

func compareValues(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return coerceString(a) < coerceString(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func projectFields(records []content.Record, fields []string) []content.Record {
	out := make([]content.Record, len(records))
	for i, rec := range records {
		projected := make(content.Record, len(fields))
		for _, f := range fields {
			if v, ok := rec[f]; ok {
				projected[f] = v
			}
		}
		// The id always survives projection; tags and invalidation
		// depend on it.
		if v, ok := rec["id"]; ok {
			projected["id"] = v
		}
		out[i] = projected
	}
	return out
}

// FindBySlug scans records for a matching slug.
func FindBySlug(records []content.Record, slug string) (content.Record, bool) {
	for _, rec := range records {
		if rec.Slug() == slug {
			return rec, true
		}
	}
	return nil, false
}

// FindByID scans records for a matching id.
func FindByID(records []content.Record, id string) (content.Record, bool) {
	for _, rec := range records {
		if rec.ID() == id {
			return rec, true
		}
	}
	return nil, false
}
