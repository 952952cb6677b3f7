package types

// Property is the opaque read contract the concierge assumes for search
// results. Any data source implementing this shape can back the search
// tools; the core never depends on where it came from.
type Property struct {
	ID          string   `json:"id"`
	Address     string   `json:"address"`
	Suburb      string   `json:"suburb,omitempty"`
	State       string   `json:"state,omitempty"`
	Price       int      `json:"price"`
	Bedrooms    int      `json:"bedrooms"`
	Bathrooms   int      `json:"bathrooms"`
	Parking     int      `json:"parking,omitempty"`
	Type        string   `json:"propertyType,omitempty"`
	AreaSqm     int      `json:"areaSqm,omitempty"`
	YearBuilt   int      `json:"yearBuilt,omitempty"`
	Features    []string `json:"features,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}
