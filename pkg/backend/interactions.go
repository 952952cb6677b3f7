package backend

import "context"

// Interactions records property interactions (searches, detail views)
// through the backend RPC API so the marketplace can personalize results.
type Interactions struct {
	client *Client
	userID string
}

// NewInteractions creates an interaction recorder for one user.
func NewInteractions(client *Client, userID string) *Interactions {
	return &Interactions{client: client, userID: userID}
}

// Record stores one interaction of the given kind.
func (i *Interactions) Record(ctx context.Context, kind string, payload any) error {
	return i.client.Mutate(ctx, "interactions:record", map[string]any{
		"userId":  i.userID,
		"kind":    kind,
		"payload": payload,
	}, nil)
}
