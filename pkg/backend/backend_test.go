package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haus-ai/concierge/pkg/core/types"
)

func TestClientQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/query" {
			t.Errorf("path = %s, want /api/query", r.URL.Path)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Path != "properties:search" || req.Format != "json" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"value":  []map[string]any{{"id": "p1", "address": "1 Short St", "price": 900000}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var props []types.Property
	err := client.Query(context.Background(), "properties:search",
		map[string]any{"location": "Sydney"}, &props)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(props) != 1 || props[0].ID != "p1" {
		t.Errorf("props = %+v", props)
	}
}

func TestClientMutateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "error",
			"errorMessage": "unknown function",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Mutate(context.Background(), "preferences:remember", map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestInteractionsRecord(t *testing.T) {
	var got struct {
		Path string         `json:"path"`
		Args map[string]any `json:"args"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mutation" {
			t.Errorf("path = %s, want /api/mutation", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "value": nil})
	}))
	defer server.Close()

	rec := NewInteractions(NewClient(server.URL), "u-1")
	err := rec.Record(context.Background(), "view", map[string]string{"propertyId": "p1"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got.Path != "interactions:record" {
		t.Errorf("rpc path = %q, want interactions:record", got.Path)
	}
	if got.Args["userId"] != "u-1" || got.Args["kind"] != "view" {
		t.Errorf("args = %v", got.Args)
	}
}

func testStore(t *testing.T) *PropertyStore {
	t.Helper()
	store, err := OpenPropertyStore(":memory:")
	if err != nil {
		t.Fatalf("OpenPropertyStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	seed := []types.Property{
		{ID: "p1", Address: "1 Harbour St", Suburb: "Sydney", State: "NSW", Price: 1400000,
			Bedrooms: 2, Bathrooms: 2, Type: "apartment", AreaSqm: 95,
			Features: []string{"pool", "gym"}},
		{ID: "p2", Address: "2 Beach Rd", Suburb: "Bondi", State: "NSW", Price: 2500000,
			Bedrooms: 3, Bathrooms: 2, Type: "house", AreaSqm: 180,
			Features: []string{"garden"}},
		{ID: "p3", Address: "3 Park Ln", Suburb: "Sydney", State: "NSW", Price: 800000,
			Bedrooms: 1, Bathrooms: 1, Type: "apartment", AreaSqm: 60,
			Features: []string{"gym"}},
	}
	for _, p := range seed {
		if err := store.Insert(context.Background(), p); err != nil {
			t.Fatalf("Insert(%s) error = %v", p.ID, err)
		}
	}
	return store
}

func TestPropertyStoreSearch(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  types.SearchParameters
		wantIDs []string
	}{
		{
			name:    "unconstrained returns all cheapest first",
			params:  types.SearchParameters{},
			wantIDs: []string{"p3", "p1", "p2"},
		},
		{
			name: "location and type",
			params: types.SearchParameters{
				Location:     "Sydney",
				PropertyType: "apartment",
			},
			wantIDs: []string{"p3", "p1"},
		},
		{
			name: "bedrooms is a minimum",
			params: types.SearchParameters{
				Bedrooms: types.IntPtr(2),
			},
			wantIDs: []string{"p1", "p2"},
		},
		{
			name: "price ceiling with amenity",
			params: types.SearchParameters{
				PriceRange: &types.PriceRange{Max: types.IntPtr(1500000)},
				Amenities:  []string{"pool"},
			},
			wantIDs: []string{"p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, err := store.Search(ctx, tt.params, 0)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var ids []string
			for _, p := range props {
				ids = append(ids, p.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
				}
			}
		})
	}
}

func TestPropertyStoreGet(t *testing.T) {
	store := testStore(t)

	p, err := store.Get(context.Background(), "p2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Address != "2 Beach Rd" || p.Bedrooms != 3 {
		t.Errorf("unexpected property: %+v", p)
	}

	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing id")
	}
}
