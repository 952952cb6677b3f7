package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/haus-ai/concierge/pkg/core/types"
)

// PropertyStore serves property listings from a local sqlite database.
// It backs the demo and tests without a network dependency; production
// deployments use the RPC Client against the live backend.
type PropertyStore struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS properties (
	id            TEXT PRIMARY KEY,
	address       TEXT NOT NULL,
	suburb        TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	price         INTEGER NOT NULL,
	bedrooms      INTEGER NOT NULL DEFAULT 0,
	bathrooms     INTEGER NOT NULL DEFAULT 0,
	parking       INTEGER NOT NULL DEFAULT 0,
	property_type TEXT NOT NULL DEFAULT '',
	area_sqm      INTEGER NOT NULL DEFAULT 0,
	year_built    INTEGER NOT NULL DEFAULT 0,
	features      TEXT NOT NULL DEFAULT '[]',
	description   TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT ''
);
`

// OpenPropertyStore opens (and migrates) the sqlite store at path.
// Use ":memory:" for an ephemeral store.
func OpenPropertyStore(path string) (*PropertyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open property store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate property store: %w", err)
	}
	return &PropertyStore{db: db}, nil
}

// Close releases the underlying database.
func (s *PropertyStore) Close() error {
	return s.db.Close()
}

// Insert adds a listing.
func (s *PropertyStore) Insert(ctx context.Context, p types.Property) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties
			(id, address, suburb, state, price, bedrooms, bathrooms, parking,
			 property_type, area_sqm, year_built, features, description, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Address, p.Suburb, p.State, p.Price, p.Bedrooms, p.Bathrooms,
		p.Parking, p.Type, p.AreaSqm, p.YearBuilt, string(features),
		p.Description, p.ImageURL)
	if err != nil {
		return fmt.Errorf("insert property %s: %w", p.ID, err)
	}
	return nil
}

// Get returns one listing by ID, or sql.ErrNoRows.
func (s *PropertyStore) Get(ctx context.Context, id string) (*types.Property, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, address, suburb, state, price, bedrooms, bathrooms, parking,
		       property_type, area_sqm, year_built, features, description, image_url
		FROM properties WHERE id = ?`, id)
	return scanProperty(row)
}

// Search returns listings matching the structured parameters, cheapest
// first. Unset fields are unconstrained.
func (s *PropertyStore) Search(ctx context.Context, params types.SearchParameters, limit int) ([]types.Property, error) {
	var where []string
	var args []any

	if params.Location != "" {
		where = append(where, "(suburb LIKE ? OR state LIKE ? OR address LIKE ?)")
		pattern := "%" + params.Location + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if params.PropertyType != "" {
		where = append(where, "property_type = ?")
		args = append(args, strings.ToLower(params.PropertyType))
	}
	if params.PriceRange != nil {
		if params.PriceRange.Min != nil {
			where = append(where, "price >= ?")
			args = append(args, *params.PriceRange.Min)
		}
		if params.PriceRange.Max != nil {
			where = append(where, "price <= ?")
			args = append(args, *params.PriceRange.Max)
		}
	}
	if params.Bedrooms != nil {
		where = append(where, "bedrooms >= ?")
		args = append(args, *params.Bedrooms)
	}
	if params.Bathrooms != nil {
		where = append(where, "bathrooms >= ?")
		args = append(args, *params.Bathrooms)
	}
	if params.SquareFootage != nil {
		if params.SquareFootage.Min != nil {
			where = append(where, "area_sqm >= ?")
			args = append(args, *params.SquareFootage.Min)
		}
		if params.SquareFootage.Max != nil {
			where = append(where, "area_sqm <= ?")
			args = append(args, *params.SquareFootage.Max)
		}
	}

	query := `
		SELECT id, address, suburb, state, price, bedrooms, bathrooms, parking,
		       property_type, area_sqm, year_built, features, description, image_url
		FROM properties`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY price ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search properties: %w", err)
	}
	defer rows.Close()

	var out []types.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search properties: %w", err)
	}

	// Amenities live in a JSON column; filter after the indexed columns.
	if len(params.Amenities) > 0 {
		out = filterByAmenities(out, params.Amenities)
	}
	return out, nil
}

func filterByAmenities(props []types.Property, amenities []string) []types.Property {
	filtered := props[:0]
	for _, p := range props {
		if hasAllFeatures(p.Features, amenities) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func hasAllFeatures(features, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, f := range features {
			if strings.EqualFold(f, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*types.Property, error) {
	var p types.Property
	var features string
	err := row.Scan(&p.ID, &p.Address, &p.Suburb, &p.State, &p.Price,
		&p.Bedrooms, &p.Bathrooms, &p.Parking, &p.Type, &p.AreaSqm,
		&p.YearBuilt, &features, &p.Description, &p.ImageURL)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, fmt.Errorf("decode features for %s: %w", p.ID, err)
	}
	return &p, nil
}
