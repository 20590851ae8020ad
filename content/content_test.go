package content

import "testing"

func TestRecord_IDAndSlug(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		id   string
		slug string
	}{
		{"string fields", Record{"id": "st-001", "slug": "shell-coburg"}, "st-001", "shell-coburg"},
		{"numeric id from json", Record{"id": float64(42)}, "42", ""},
		{"int id", Record{"id": 7}, "7", ""},
		{"missing", Record{"name": "BP Brunswick"}, "", ""},
		{"wrong type", Record{"id": []string{"x"}}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.ID(); got != tt.id {
				t.Errorf("ID() = %q, want %q", got, tt.id)
			}
			if got := tt.rec.Slug(); got != tt.slug {
				t.Errorf("Slug() = %q, want %q", got, tt.slug)
			}
		})
	}
}

func TestQuery_Normalize(t *testing.T) {
	q := Query{}.Normalize()
	if q.Page != 1 {
		t.Errorf("Page = %d, want 1", q.Page)
	}
	if q.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", q.PageSize, DefaultPageSize)
	}

	q = Query{Page: 3, PageSize: 500}.Normalize()
	if q.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want clamp to %d", q.PageSize, MaxPageSize)
	}
	if q.Offset() != 2*MaxPageSize {
		t.Errorf("Offset() = %d, want %d", q.Offset(), 2*MaxPageSize)
	}

	q = Query{Sort: &Sort{Field: "price", Order: "bogus"}}.Normalize()
	if q.Sort.Order != SortAsc {
		t.Errorf("Sort.Order = %q, want %q", q.Sort.Order, SortAsc)
	}
}

func TestQuery_NormalizeDoesNotMutateSort(t *testing.T) {
	orig := &Sort{Field: "price", Order: "weird"}
	q := Query{Sort: orig}
	_ = q.Normalize()
	if orig.Order != "weird" {
		t.Error("Normalize mutated the caller's Sort")
	}
}

func TestSinglePage(t *testing.T) {
	p := SinglePage(Record{"id": "a"})
	if len(p.Data) != 1 || p.Total != 1 || p.PageSize != 1 {
		t.Errorf("unexpected single page: %+v", p)
	}
}
