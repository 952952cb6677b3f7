package types

import (
	"reflect"
	"testing"
)

func TestGenerateJSONSchema_SearchToolInput(t *testing.T) {
	type input struct {
		Location     string   `json:"location" desc:"Suburb or region"`
		PriceMin     *int     `json:"priceMin,omitempty" desc:"Minimum budget in AUD"`
		PriceMax     *int     `json:"priceMax,omitempty"`
		BedroomsMin  int      `json:"bedroomsMin,omitempty"`
		PropertyType string   `json:"propertyType,omitempty" enum:"house,apartment,townhouse"`
		Amenities    []string `json:"amenities,omitempty"`
	}

	schema := SchemaFor[input]()
	if schema.Type != "object" {
		t.Fatalf("type = %q, want object", schema.Type)
	}

	loc, ok := schema.Properties["location"]
	if !ok {
		t.Fatal("missing location property")
	}
	if loc.Type != "string" || loc.Description != "Suburb or region" {
		t.Errorf("location schema = %+v", loc)
	}

	if pm := schema.Properties["priceMin"]; pm.Type != "integer" {
		t.Errorf("priceMin type = %q, want integer", pm.Type)
	}

	pt := schema.Properties["propertyType"]
	if !reflect.DeepEqual(pt.Enum, []string{"house", "apartment", "townhouse"}) {
		t.Errorf("propertyType enum = %v", pt.Enum)
	}

	am := schema.Properties["amenities"]
	if am.Type != "array" || am.Items == nil || am.Items.Type != "string" {
		t.Errorf("amenities schema = %+v", am)
	}

	// Only the bare string field without omitempty is required.
	if !reflect.DeepEqual(schema.Required, []string{"location"}) {
		t.Errorf("required = %v, want [location]", schema.Required)
	}
}

func TestGenerateJSONSchema_Scalars(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"", "string"},
		{0, "integer"},
		{0.0, "number"},
		{false, "boolean"},
		{map[string]any{}, "object"},
	}
	for _, tt := range tests {
		got := GenerateJSONSchema(reflect.TypeOf(tt.value))
		if got.Type != tt.want {
			t.Errorf("GenerateJSONSchema(%T).Type = %q, want %q", tt.value, got.Type, tt.want)
		}
	}
}
