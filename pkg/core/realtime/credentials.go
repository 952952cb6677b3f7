package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haus-ai/concierge/pkg/core"
	"github.com/haus-ai/concierge/pkg/core/types"
)

// CredentialRequest is the body posted to the credential endpoint.
type CredentialRequest struct {
	Model       string       `json:"model"`
	Voice       string       `json:"voice,omitempty"`
	CustomTools []types.Tool `json:"customTools,omitempty"`
}

// Credential is an ephemeral client secret minted by the gateway.
type Credential struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	ExpiresAt    int64  `json:"expires_at"`
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
}

// Expired reports whether the credential is past its expiry.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// CredentialClient mints ephemeral realtime credentials from a gateway
// endpoint so the provider API key never reaches the client.
type CredentialClient struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewCredentialClient creates a client for the given mint endpoint.
func NewCredentialClient(endpoint string) *CredentialClient {
	return &CredentialClient{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Mint requests an ephemeral credential for a realtime session.
func (c *CredentialClient) Mint(ctx context.Context, req CredentialRequest) (*Credential, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode credential request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build credential request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, core.NewAuthError(fmt.Sprintf("credential endpoint unreachable: %v", err), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, core.NewAuthError("read credential response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewAuthError(fmt.Sprintf("credential endpoint returned %d: %s", resp.StatusCode, truncateBody(data)), nil)
	}

	// Some gateways report provider-side failures with a 200.
	var probe struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Error != nil {
		return nil, core.NewAuthError("credential endpoint error: "+probe.Error.Message, nil)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, core.NewAuthError("decode credential response", err)
	}
	if cred.ClientSecret.Value == "" {
		return nil, core.NewAuthError("credential response missing client secret", nil)
	}
	return &cred, nil
}

func truncateBody(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
