package types

// ListingType distinguishes sale and rental listings.
type ListingType string

const (
	ListingForSale ListingType = "for-sale"
	ListingForRent ListingType = "for-rent"
	ListingSold    ListingType = "sold"
	ListingLeased  ListingType = "leased"
)

// PriceRange bounds a property price query. A nil bound is unconstrained.
type PriceRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// AreaRange bounds the floor area in square metres.
type AreaRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Tag marks a listing with a permanent attribute.
type Tag string

const (
	TagNew       Tag = "new"
	TagPremium   Tag = "premium"
	TagOpenHouse Tag = "open-house"
	TagAuction   Tag = "auction"
)

// SearchParameters is the accumulating structured query extracted from
// conversation. Every field is optional; absence means unconstrained.
// Fields are only appended or overwritten during a session, never
// implicitly cleared except by Reset.
type SearchParameters struct {
	Location      string      `json:"location,omitempty"`
	PropertyType  string      `json:"propertyType,omitempty"`
	ListingType   ListingType `json:"listingType,omitempty"`
	PriceRange    *PriceRange `json:"priceRange,omitempty"`
	Bedrooms      *int        `json:"bedrooms,omitempty"`
	Bathrooms     *int        `json:"bathrooms,omitempty"`
	SquareFootage *AreaRange  `json:"squareFootage,omitempty"`
	Amenities     []string    `json:"amenities,omitempty"`
	Style         string      `json:"style,omitempty"`
	StyleImageURL string      `json:"styleImageUrl,omitempty"`
	Tags          []Tag       `json:"tags,omitempty"`
}

// IsEmpty reports whether no field is constrained.
func (p *SearchParameters) IsEmpty() bool {
	return p.Location == "" && p.PropertyType == "" && p.ListingType == "" &&
		p.PriceRange == nil && p.Bedrooms == nil && p.Bathrooms == nil &&
		p.SquareFootage == nil && len(p.Amenities) == 0 && p.Style == "" &&
		p.StyleImageURL == "" && len(p.Tags) == 0
}

// AddAmenity appends an amenity if not already present.
func (p *SearchParameters) AddAmenity(a string) bool {
	for _, existing := range p.Amenities {
		if existing == a {
			return false
		}
	}
	p.Amenities = append(p.Amenities, a)
	return true
}

// AddTag appends a tag if not already present.
func (p *SearchParameters) AddTag(t Tag) bool {
	for _, existing := range p.Tags {
		if existing == t {
			return false
		}
	}
	p.Tags = append(p.Tags, t)
	return true
}

// Reset clears all fields. This is the only path that removes constraints.
func (p *SearchParameters) Reset() {
	*p = SearchParameters{}
}

// IntPtr is a convenience for literal optional bounds.
func IntPtr(v int) *int { return &v }
