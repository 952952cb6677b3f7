package search

import (
	"context"
	"reflect"
	"testing"

	"github.com/haus-ai/concierge/pkg/core/types"
)

const demoPhrase = "Show me a luxury apartment in Sydney with a pool and at least 2 bedrooms under $1.5M."

func replayDemo(t *testing.T, acc *Accumulator) {
	t.Helper()
	sim := NewSimulator(SimulatorConfig{Accumulator: acc, Seed: 42})
	if err := sim.Replay(context.Background(), demoPhrase); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
}

func TestDemoPhraseExtraction(t *testing.T) {
	acc := NewAccumulator()
	replayDemo(t, acc)

	got := acc.Parameters()
	want := types.SearchParameters{
		Location:     "Sydney",
		PropertyType: "apartment",
		PriceRange:   &types.PriceRange{Max: types.IntPtr(1500000)},
		Bedrooms:     types.IntPtr(2),
		Amenities:    []string{"pool"},
		Tags:         []types.Tag{types.TagPremium},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parameters = %+v, want %+v", got, want)
	}
}

func TestDemoPhraseIsDeterministic(t *testing.T) {
	acc := NewAccumulator()
	replayDemo(t, acc)
	first := acc.Parameters()

	acc.Reset()
	replayDemo(t, acc)
	second := acc.Parameters()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("replay not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestIngestRules(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, p types.SearchParameters)
	}{
		{
			name: "rental listing with bathrooms",
			text: "a townhouse for rent in Newtown with 2 bathrooms",
			check: func(t *testing.T, p types.SearchParameters) {
				if p.PropertyType != "townhouse" {
					t.Errorf("propertyType = %q", p.PropertyType)
				}
				if p.ListingType != types.ListingForRent {
					t.Errorf("listingType = %q", p.ListingType)
				}
				if p.Location != "Newtown" {
					t.Errorf("location = %q", p.Location)
				}
				if p.Bathrooms == nil || *p.Bathrooms != 2 {
					t.Errorf("bathrooms = %v", p.Bathrooms)
				}
			},
		},
		{
			name: "price floor in thousands",
			text: "houses from $800k with a garden",
			check: func(t *testing.T, p types.SearchParameters) {
				if p.PriceRange == nil || p.PriceRange.Min == nil || *p.PriceRange.Min != 800000 {
					t.Errorf("priceRange = %+v", p.PriceRange)
				}
				if len(p.Amenities) != 1 || p.Amenities[0] != "garden" {
					t.Errorf("amenities = %v", p.Amenities)
				}
			},
		},
		{
			name: "multi word location",
			text: "something in Byron Bay near the beach",
			check: func(t *testing.T, p types.SearchParameters) {
				if p.Location != "Byron Bay" {
					t.Errorf("location = %q", p.Location)
				}
			},
		},
		{
			name: "auction tag without clobbering",
			text: "an auction this open house weekend",
			check: func(t *testing.T, p types.SearchParameters) {
				want := []types.Tag{types.TagOpenHouse, types.TagAuction}
				if len(p.Tags) != 2 {
					t.Fatalf("tags = %v, want both of %v", p.Tags, want)
				}
			},
		},
		{
			name: "townhouse does not match house",
			text: "a townhouse please",
			check: func(t *testing.T, p types.SearchParameters) {
				if p.PropertyType != "townhouse" {
					t.Errorf("propertyType = %q", p.PropertyType)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator()
			acc.Ingest(tt.text)
			tt.check(t, acc.Parameters())
		})
	}
}

func TestPrefixIngestConvergesOnFullText(t *testing.T) {
	whole := NewAccumulator()
	whole.Ingest(demoPhrase)

	prefix := NewAccumulator()
	runes := []rune(demoPhrase)
	for i := range runes {
		prefix.Ingest(string(runes[:i+1]))
	}

	if !reflect.DeepEqual(whole.Parameters(), prefix.Parameters()) {
		t.Errorf("prefix feed diverged:\nwhole  = %+v\nprefix = %+v",
			whole.Parameters(), prefix.Parameters())
	}
}

func TestHighlightCallback(t *testing.T) {
	var fields []Field
	acc := NewAccumulator()
	acc.OnFieldSet = func(f Field) { fields = append(fields, f) }

	acc.Ingest("an apartment in Sydney")
	if len(fields) != 2 {
		t.Fatalf("highlights = %v, want location and propertyType", fields)
	}

	// Re-ingesting identical text must not re-fire highlights.
	fields = nil
	acc.Ingest("an apartment in Sydney")
	if len(fields) != 0 {
		t.Errorf("unchanged ingest fired highlights: %v", fields)
	}
}

func TestSineRandIsStable(t *testing.T) {
	a := newSineRand(7)
	b := newSineRand(7)
	for i := 0; i < 100; i++ {
		av, bv := a.Next(), b.Next()
		if av != bv {
			t.Fatalf("sequence diverged at %d: %v != %v", i, av, bv)
		}
		if av < 0 || av >= 1 {
			t.Fatalf("value out of range: %v", av)
		}
	}
}
