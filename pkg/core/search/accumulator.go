// Package search extracts structured property search parameters from
// conversational text and drives the typed-input demo that feeds the
// same accumulation path as live transcription.
package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/haus-ai/concierge/pkg/core/types"
)

// Field names a SearchParameters field for highlight callbacks.
type Field string

const (
	FieldLocation     Field = "location"
	FieldPropertyType Field = "propertyType"
	FieldListingType  Field = "listingType"
	FieldPriceRange   Field = "priceRange"
	FieldBedrooms     Field = "bedrooms"
	FieldBathrooms    Field = "bathrooms"
	FieldAmenities    Field = "amenities"
	FieldTags         Field = "tags"
)

// Accumulator folds free text into SearchParameters. Feeding a growing
// prefix of the same text converges on the same result as feeding it
// whole: rules re-evaluate on every call and only ever set or overwrite
// fields, never clear them.
type Accumulator struct {
	params types.SearchParameters

	// OnFieldSet fires when a rule sets or changes a field, for
	// glow/highlight feedback. May be nil.
	OnFieldSet func(Field)
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Parameters returns the current accumulated parameters.
func (a *Accumulator) Parameters() types.SearchParameters {
	return a.params
}

// Reset clears all accumulated parameters.
func (a *Accumulator) Reset() {
	a.params.Reset()
}

var (
	locationRe  = regexp.MustCompile(`\bin ([A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)*)`)
	bedroomsRe  = regexp.MustCompile(`(\d+)\s*(?:\+\s*)?bed(?:room)?s?\b`)
	bathroomsRe = regexp.MustCompile(`(\d+)\s*(?:\+\s*)?bath(?:room)?s?\b`)
	maxPriceRe  = regexp.MustCompile(`(?i)\b(?:under|below|up to|less than|max(?:imum)?(?: of)?)\s*\$(\d+(?:\.\d+)?)\s*(million|thousand|[mk])?`)
	minPriceRe  = regexp.MustCompile(`(?i)\b(?:over|above|from|min(?:imum)?(?: of)?|starting at)\s*\$(\d+(?:\.\d+)?)\s*(million|thousand|[mk])?`)
)

var propertyTypes = []string{"apartment", "house", "townhouse", "villa", "studio", "unit", "land"}

var amenityKeywords = []string{
	"pool", "gym", "garden", "balcony", "garage", "study",
	"air conditioning", "fireplace", "courtyard",
}

var tagKeywords = []struct {
	keyword string
	tag     types.Tag
}{
	{"luxury", types.TagPremium},
	{"luxurious", types.TagPremium},
	{"premium", types.TagPremium},
	{"brand new", types.TagNew},
	{"newly", types.TagNew},
	{"open house", types.TagOpenHouse},
	{"auction", types.TagAuction},
}

// Ingest applies every keyword rule to text, in rule order, mutating
// the accumulated parameters.
func (a *Accumulator) Ingest(text string) {
	lower := strings.ToLower(text)

	if m := locationRe.FindStringSubmatch(text); m != nil {
		a.setString(&a.params.Location, m[1], FieldLocation)
	}

	for _, pt := range propertyTypes {
		if containsWord(lower, pt) {
			a.setString(&a.params.PropertyType, pt, FieldPropertyType)
			break
		}
	}

	switch {
	case strings.Contains(lower, "for rent"), strings.Contains(lower, "to rent"), strings.Contains(lower, "rental"):
		a.setListing(types.ListingForRent)
	case strings.Contains(lower, "for sale"), strings.Contains(lower, "to buy"):
		a.setListing(types.ListingForSale)
	}

	if m := bedroomsRe.FindStringSubmatch(lower); m != nil {
		a.setInt(&a.params.Bedrooms, m[1], FieldBedrooms)
	}
	if m := bathroomsRe.FindStringSubmatch(lower); m != nil {
		a.setInt(&a.params.Bathrooms, m[1], FieldBathrooms)
	}

	if m := maxPriceRe.FindStringSubmatch(text); m != nil {
		a.setPrice(&a.params.PriceRange, m[1], m[2], false)
	}
	if m := minPriceRe.FindStringSubmatch(text); m != nil {
		a.setPrice(&a.params.PriceRange, m[1], m[2], true)
	}

	for _, amenity := range amenityKeywords {
		if containsWord(lower, amenity) && a.params.AddAmenity(amenity) {
			a.highlight(FieldAmenities)
		}
	}
	for _, entry := range tagKeywords {
		if strings.Contains(lower, entry.keyword) && a.params.AddTag(entry.tag) {
			a.highlight(FieldTags)
		}
	}
}

func (a *Accumulator) setString(dst *string, value string, field Field) {
	if *dst == value {
		return
	}
	*dst = value
	a.highlight(field)
}

func (a *Accumulator) setListing(value types.ListingType) {
	if a.params.ListingType == value {
		return
	}
	a.params.ListingType = value
	a.highlight(FieldListingType)
}

func (a *Accumulator) setInt(dst **int, raw string, field Field) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	if *dst != nil && **dst == n {
		return
	}
	*dst = types.IntPtr(n)
	a.highlight(field)
}

func (a *Accumulator) setPrice(rng **types.PriceRange, amount, unit string, isMin bool) {
	value, ok := parsePrice(amount, unit)
	if !ok {
		return
	}
	if *rng == nil {
		*rng = &types.PriceRange{}
	}
	bound := &(*rng).Max
	if isMin {
		bound = &(*rng).Min
	}
	if *bound != nil && **bound == value {
		return
	}
	*bound = types.IntPtr(value)
	a.highlight(FieldPriceRange)
}

func parsePrice(amount, unit string) (int, bool) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "m", "million":
		f *= 1_000_000
	case "k", "thousand":
		f *= 1_000
	}
	return int(f), true
}

func (a *Accumulator) highlight(field Field) {
	if a.OnFieldSet != nil {
		a.OnFieldSet(field)
	}
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		before := start == 0 || !isWordByte(text[start-1])
		after := end == len(text) || !isWordByte(text[end])
		if before && after {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
