package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/provider"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := New(Config{
		BaseURL:       server.URL,
		SpreadsheetID: "doc-1",
		APIKey:        "test-key",
		Tabs:          map[string]string{"stations": "Stations"},
		HTTPClient:    server.Client(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return adapter, server
}

func stationsValues() map[string]any {
	return map[string]any{
		"values": [][]any{
			{"id", "slug", "name", "price"},
			{"1", "shell-cbd", "Shell CBD", 1.89},
			{"2", "bp-richmond", "BP Richmond", 1.75},
			{"", "", "", ""},
			{"3", "ampol-fitzroy", "Ampol Fitzroy", 1.92},
		},
	}
}

func TestFetchAllMapsHeaderToFields(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v4/spreadsheets/doc-1/values/Stations") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q, want test-key", got)
		}
		json.NewEncoder(w).Encode(stationsValues())
	})

	page, err := adapter.FetchAll(context.Background(), "stations", content.Query{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	// Blank row is skipped.
	if page.Total != 3 {
		t.Fatalf("Total = %d, want 3", page.Total)
	}
	if got := page.Data[0]["name"]; got != "Shell CBD" {
		t.Errorf("Data[0][name] = %v, want Shell CBD", got)
	}
	if got := page.Data[0].Slug(); got != "shell-cbd" {
		t.Errorf("Slug() = %q, want shell-cbd", got)
	}
}

func TestFetchAllAppliesQueryInProcess(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(stationsValues())
	})

	page, err := adapter.FetchAll(context.Background(), "stations", content.Query{
		Sort:     &content.Sort{Field: "price", Order: content.SortDesc},
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if page.Total != 3 || len(page.Data) != 2 {
		t.Fatalf("Total = %d len = %d, want 3 and 2", page.Total, len(page.Data))
	}
	if got := page.Data[0].ID(); got != "3" {
		t.Errorf("highest price id = %q, want 3", got)
	}
}

func TestFetchByIDAndSlug(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(stationsValues())
	})

	rec, err := adapter.FetchByID(context.Background(), "stations", "2")
	if err != nil {
		t.Fatalf("FetchByID() error = %v", err)
	}
	if got := (*rec)["name"]; got != "BP Richmond" {
		t.Errorf("name = %v, want BP Richmond", got)
	}

	rec, err = adapter.FetchBySlug(context.Background(), "stations", "ampol-fitzroy")
	if err != nil {
		t.Fatalf("FetchBySlug() error = %v", err)
	}
	if got := rec.ID(); got != "3" {
		t.Errorf("ID() = %q, want 3", got)
	}

	_, err = adapter.FetchByID(context.Background(), "stations", "404")
	if !provider.IsKind(err, provider.KindNotFound) {
		t.Errorf("missing id error = %v, want KindNotFound", err)
	}
}

func TestCreateAppendsRowInHeaderOrder(t *testing.T) {
	var appended [][]any
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, ":append") {
			if r.Method != http.MethodPost {
				t.Errorf("append method = %s, want POST", r.Method)
			}
			if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
				t.Errorf("valueInputOption = %q, want RAW", got)
			}
			var body struct {
				Values [][]any `json:"values"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			appended = body.Values
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}"))
			return
		}
		json.NewEncoder(w).Encode(stationsValues())
	})

	_, err := adapter.Create(context.Background(), "stations", content.Record{
		"id": "4", "name": "7-Eleven Carlton", "slug": "seven-carlton",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(appended))
	}
	row := appended[0]
	// Header order is id, slug, name, price; missing fields are blank.
	if row[0] != "4" || row[1] != "seven-carlton" || row[2] != "7-Eleven Carlton" || row[3] != "" {
		t.Errorf("appended row = %v", row)
	}
}

func TestUpdateWritesRowRange(t *testing.T) {
	var updatedRange string
	var updatedRow []any
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			parts := strings.Split(r.URL.Path, "/values/")
			updatedRange = parts[len(parts)-1]
			var body struct {
				Values [][]any `json:"values"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			updatedRow = body.Values[0]
			w.Write([]byte("{}"))
			return
		}
		json.NewEncoder(w).Encode(stationsValues())
	})

	rec, err := adapter.Update(context.Background(), "stations", "2", content.Record{"price": 1.79})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	// Record "2" sits on sheet row 3 (after the header).
	if updatedRange != "Stations!A3:D3" {
		t.Errorf("range = %q, want Stations!A3:D3", updatedRange)
	}
	if updatedRow[3] != 1.79 {
		t.Errorf("updated price cell = %v, want 1.79", updatedRow[3])
	}
	if got := (*rec)["name"]; got != "BP Richmond" {
		t.Errorf("merged name = %v, want BP Richmond", got)
	}
}

func TestDeleteClearsRowRange(t *testing.T) {
	var clearedRange string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, ":clear") {
			parts := strings.Split(r.URL.Path, "/values/")
			clearedRange = strings.TrimSuffix(parts[len(parts)-1], ":clear")
			w.Write([]byte("{}"))
			return
		}
		json.NewEncoder(w).Encode(stationsValues())
	})

	if err := adapter.Delete(context.Background(), "stations", "3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Record "3" sits on sheet row 5 (blank row counts).
	if clearedRange != "Stations!A5:D5" {
		t.Errorf("range = %q, want Stations!A5:D5", clearedRange)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   provider.Kind
	}{
		{http.StatusUnauthorized, provider.KindAuthFailure},
		{http.StatusForbidden, provider.KindAuthFailure},
		{http.StatusNotFound, provider.KindNotFound},
		{http.StatusTooManyRequests, provider.KindRateLimited},
		{http.StatusInternalServerError, provider.KindUnavailable},
		{http.StatusBadRequest, provider.KindMalformed},
	}

	for _, tt := range tests {
		adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := adapter.FetchAll(context.Background(), "stations", content.Query{})
		if !provider.IsKind(err, tt.kind) {
			t.Errorf("status %d: error = %v, want kind %s", tt.status, err, tt.kind)
		}
	}
}

func TestUnmappedCollection(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})
	_, err := adapter.FetchAll(context.Background(), "unknown", content.Query{})
	if !provider.IsKind(err, provider.KindNotFound) {
		t.Errorf("error = %v, want KindNotFound", err)
	}
}

func TestEmptyTabIsMalformed(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"values": [][]any{}})
	})
	_, err := adapter.FetchAll(context.Background(), "stations", content.Query{})
	if !provider.IsKind(err, provider.KindMalformed) {
		t.Errorf("error = %v, want KindMalformed", err)
	}
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"}, {4, "D"}, {26, "Z"}, {27, "AA"}, {52, "AZ"},
	}
	for _, tt := range tests {
		if got := columnLetter(tt.n); got != tt.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
