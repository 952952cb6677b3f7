package backend

import "context"

// Preferences persists buyer preferences through the backend RPC API.
type Preferences struct {
	client *Client
	userID string
}

// NewPreferences creates a preference store for one user.
func NewPreferences(client *Client, userID string) *Preferences {
	return &Preferences{client: client, userID: userID}
}

// Remember stores one stated preference.
func (p *Preferences) Remember(ctx context.Context, category, preference string) error {
	return p.client.Mutate(ctx, "preferences:remember", map[string]any{
		"userId":     p.userID,
		"category":   category,
		"preference": preference,
	}, nil)
}
