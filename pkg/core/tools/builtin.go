package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haus-ai/concierge/pkg/core/types"
)

// SearchBackend serves property lookups for the search tools.
type SearchBackend interface {
	Search(ctx context.Context, params types.SearchParameters, limit int) ([]types.Property, error)
	Get(ctx context.Context, id string) (*types.Property, error)
}

// PreferenceStore persists user preferences across sessions.
type PreferenceStore interface {
	Remember(ctx context.Context, category, preference string) error
}

// ClientActions are effects executed on the client rather than the
// backend: navigation and theme changes requested mid-conversation.
type ClientActions interface {
	Navigate(route string) error
	SetTheme(theme string) error
}

// InteractionRecorder captures which searches and listings came up in
// conversation, for ranking and follow-up.
type InteractionRecorder interface {
	Record(ctx context.Context, kind string, payload any) error
}

// Builtins wires the marketplace tool surface. Nil dependencies disable
// the tools that need them.
type Builtins struct {
	Search      SearchBackend
	Preferences PreferenceStore
	Client      ClientActions
	// Interactions is best-effort; recording failures never fail a tool.
	Interactions InteractionRecorder

	// SearchLimit caps results returned to the model. Zero means 10.
	SearchLimit int
}

type searchPropertiesArgs struct {
	Location     string   `json:"location,omitempty" desc:"Suburb, city or region to search in"`
	PropertyType string   `json:"propertyType,omitempty" desc:"Kind of dwelling" enum:"apartment,house,townhouse,land"`
	ListingType  string   `json:"listingType,omitempty" desc:"Sale or rental listings" enum:"for-sale,for-rent,sold,leased"`
	MinPrice     *int     `json:"minPrice,omitempty" desc:"Minimum price in dollars"`
	MaxPrice     *int     `json:"maxPrice,omitempty" desc:"Maximum price in dollars"`
	Bedrooms     *int     `json:"bedrooms,omitempty" desc:"Minimum number of bedrooms"`
	Bathrooms    *int     `json:"bathrooms,omitempty" desc:"Minimum number of bathrooms"`
	Amenities    []string `json:"amenities,omitempty" desc:"Required amenities, e.g. pool, gym, garden"`
	Tags         []string `json:"tags,omitempty" desc:"Listing tags" enum:"new,premium,open-house,auction"`
}

type getPropertyDetailsArgs struct {
	PropertyID string `json:"propertyId" desc:"Listing identifier from a previous search result"`
}

type rememberPreferenceArgs struct {
	Category   string `json:"category" desc:"Preference category, e.g. location, budget, style"`
	Preference string `json:"preference" desc:"The preference to remember, stated plainly"`
}

type navigateToArgs struct {
	Route string `json:"route" desc:"Client route to open" enum:"home,search,property,saved"`
}

type changeThemeArgs struct {
	Theme string `json:"theme" desc:"Interface theme" enum:"light,dark"`
}

// RegisterAll registers every tool whose dependencies are available,
// plus the always-present endConversation definition.
func (b *Builtins) RegisterAll(reg *Registry) {
	if b.Search != nil {
		reg.MustRegister(types.NewFunctionTool(
			"searchProperties",
			"Search property listings matching the buyer's criteria. Unset fields are unconstrained.",
			types.SchemaFor[searchPropertiesArgs](),
		), b.searchProperties)

		reg.MustRegister(types.NewFunctionTool(
			"getPropertyDetails",
			"Fetch full details for one listing by its identifier.",
			types.SchemaFor[getPropertyDetailsArgs](),
		), b.getPropertyDetails)
	}

	if b.Preferences != nil {
		reg.MustRegister(types.NewFunctionTool(
			"rememberPreference",
			"Persist a stated buyer preference for future sessions.",
			types.SchemaFor[rememberPreferenceArgs](),
		), b.rememberPreference)
	}

	if b.Client != nil {
		reg.MustRegister(types.NewFunctionTool(
			"navigateTo",
			"Navigate the client interface to a route.",
			types.SchemaFor[navigateToArgs](),
		), b.navigateTo)

		reg.MustRegister(types.NewFunctionTool(
			"changeTheme",
			"Switch the client interface between light and dark themes.",
			types.SchemaFor[changeThemeArgs](),
		), b.changeTheme)
	}

	// endConversation is intercepted by the dispatcher before any
	// handler runs; the handler exists only to advertise the tool.
	reg.MustRegister(types.NewFunctionTool(
		EndConversationTool,
		"End the conversation when the user says goodbye or asks to stop.",
		&types.JSONSchema{Type: "object", Properties: map[string]types.JSONSchema{}},
	), func(ctx context.Context, args json.RawMessage) (any, error) {
		return map[string]any{"success": true}, nil
	})
}

func (b *Builtins) searchProperties(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchPropertiesArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	params := types.SearchParameters{
		Location:     args.Location,
		PropertyType: strings.ToLower(args.PropertyType),
		ListingType:  types.ListingType(args.ListingType),
		Bedrooms:     args.Bedrooms,
		Bathrooms:    args.Bathrooms,
		Amenities:    args.Amenities,
	}
	if args.MinPrice != nil || args.MaxPrice != nil {
		params.PriceRange = &types.PriceRange{Min: args.MinPrice, Max: args.MaxPrice}
	}
	for _, tag := range args.Tags {
		params.AddTag(types.Tag(tag))
	}

	limit := b.SearchLimit
	if limit == 0 {
		limit = 10
	}
	props, err := b.Search.Search(ctx, params, limit)
	if err != nil {
		return nil, fmt.Errorf("search properties: %w", err)
	}
	b.recordInteraction(ctx, "search", params)
	return map[string]any{
		"count":      len(props),
		"properties": props,
	}, nil
}

func (b *Builtins) getPropertyDetails(ctx context.Context, raw json.RawMessage) (any, error) {
	var args getPropertyDetailsArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.PropertyID == "" {
		return nil, fmt.Errorf("propertyId is required")
	}
	prop, err := b.Search.Get(ctx, args.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", args.PropertyID, err)
	}
	b.recordInteraction(ctx, "view", map[string]string{"propertyId": args.PropertyID})
	return map[string]any{"property": prop}, nil
}

func (b *Builtins) recordInteraction(ctx context.Context, kind string, payload any) {
	if b.Interactions == nil {
		return
	}
	if err := b.Interactions.Record(ctx, kind, payload); err != nil {
		slog.Debug("record interaction failed", "kind", kind, "error", err)
	}
}

func (b *Builtins) rememberPreference(ctx context.Context, raw json.RawMessage) (any, error) {
	var args rememberPreferenceArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Preference == "" {
		return nil, fmt.Errorf("preference is required")
	}
	if err := b.Preferences.Remember(ctx, args.Category, args.Preference); err != nil {
		return nil, fmt.Errorf("remember preference: %w", err)
	}
	return map[string]any{"remembered": args.Preference}, nil
}

func (b *Builtins) navigateTo(ctx context.Context, raw json.RawMessage) (any, error) {
	var args navigateToArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := b.Client.Navigate(args.Route); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", args.Route, err)
	}
	return map[string]any{"route": args.Route}, nil
}

func (b *Builtins) changeTheme(ctx context.Context, raw json.RawMessage) (any, error) {
	var args changeThemeArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Theme != "light" && args.Theme != "dark" {
		return nil, fmt.Errorf("unknown theme %q", args.Theme)
	}
	if err := b.Client.SetTheme(args.Theme); err != nil {
		return nil, fmt.Errorf("change theme: %w", err)
	}
	return map[string]any{"theme": args.Theme}, nil
}

func unmarshalArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
