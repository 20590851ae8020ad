package provider

import (
	"testing"

	"github.com/PetroPricesnearMe/content-gateway/content"
)

func stations() []content.Record {
	return []content.Record{
		{"id": "1", "name": "Shell Coburg", "suburb": "Coburg", "price": 1.85},
		{"id": "2", "name": "BP Brunswick", "suburb": "Brunswick", "price": 1.79},
		{"id": "3", "name": "7-Eleven Coburg", "suburb": "Coburg", "price": 1.72},
		{"id": "4", "name": "United Preston", "suburb": "Preston", "price": 1.91, "slug": "united-preston"},
	}
}

func TestApply_Filters(t *testing.T) {
	page := Apply(stations(), content.Query{Filters: map[string]any{"suburb": "Coburg"}})
	if page.Total != 2 {
		t.Fatalf("Total = %d, want 2", page.Total)
	}
	for _, rec := range page.Data {
		if rec["suburb"] != "Coburg" {
			t.Errorf("filter leak: %v", rec)
		}
	}
}

func TestApply_FilterCoercion(t *testing.T) {
	recs := []content.Record{{"id": "1", "postcode": float64(3058)}}
	page := Apply(recs, content.Query{Filters: map[string]any{"postcode": "3058"}})
	if page.Total != 1 {
		t.Error("numeric field should match its string form")
	}
}

func TestApply_Search(t *testing.T) {
	page := Apply(stations(), content.Query{Search: "coburg"})
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2 case-insensitive matches", page.Total)
	}
}

func TestApply_SortAndPaginate(t *testing.T) {
	q := content.Query{
		Page:     1,
		PageSize: 2,
		Sort:     &content.Sort{Field: "price", Order: content.SortAsc},
	}
	page := Apply(stations(), q)

	if page.Total != 4 {
		t.Fatalf("Total = %d, want 4", page.Total)
	}
	if len(page.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(page.Data))
	}
	if page.Data[0].ID() != "3" || page.Data[1].ID() != "2" {
		t.Errorf("wrong ascending price order: %v", page.Data)
	}

	q.Sort.Order = content.SortDesc
	page = Apply(stations(), q)
	if page.Data[0].ID() != "4" {
		t.Errorf("wrong descending price order: %v", page.Data)
	}
}

func TestApply_PageBeyondEnd(t *testing.T) {
	page := Apply(stations(), content.Query{Page: 9, PageSize: 10})
	if len(page.Data) != 0 {
		t.Errorf("page beyond end should be empty, got %d records", len(page.Data))
	}
	if page.Total != 4 {
		t.Errorf("Total = %d, want 4 even past the end", page.Total)
	}
}

func TestApply_FieldProjectionKeepsID(t *testing.T) {
	page := Apply(stations(), content.Query{Fields: []string{"name"}})
	for _, rec := range page.Data {
		if rec.ID() == "" {
			t.Error("projection must keep the id")
		}
		if _, ok := rec["price"]; ok {
			t.Error("unrequested field survived projection")
		}
	}
}

func TestFindBySlugAndID(t *testing.T) {
	recs := stations()
	if rec, ok := FindBySlug(recs, "united-preston"); !ok || rec.ID() != "4" {
		t.Errorf("FindBySlug = %v, %v", rec, ok)
	}
	if _, ok := FindBySlug(recs, "missing"); ok {
		t.Error("FindBySlug should miss")
	}
	if rec, ok := FindByID(recs, "2"); !ok || rec["name"] != "BP Brunswick" {
		t.Errorf("FindByID = %v, %v", rec, ok)
	}
}
