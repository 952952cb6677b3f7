package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haus-ai/concierge/pkg/core"
)

func TestCredentialClientMint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req CredentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-realtime" {
			t.Errorf("model = %q, want gpt-realtime", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "sess_abc",
			"model":      "gpt-realtime",
			"expires_at": 1760000000,
			"client_secret": map[string]any{
				"value": "ek_test_123",
			},
		})
	}))
	defer server.Close()

	client := NewCredentialClient(server.URL)
	cred, err := client.Mint(context.Background(), CredentialRequest{Model: "gpt-realtime", Voice: "marin"})
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if cred.ClientSecret.Value != "ek_test_123" {
		t.Errorf("secret = %q, want ek_test_123", cred.ClientSecret.Value)
	}
	if cred.ID != "sess_abc" {
		t.Errorf("id = %q, want sess_abc", cred.ID)
	}
}

func TestCredentialClientMintErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"bad key"}}`,
		},
		{
			name:   "embedded error with 200",
			status: http.StatusOK,
			body:   `{"error":{"message":"quota exceeded"}}`,
		},
		{
			name:   "missing secret",
			status: http.StatusOK,
			body:   `{"id":"sess_1","model":"gpt-realtime"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewCredentialClient(server.URL)
			_, err := client.Mint(context.Background(), CredentialRequest{Model: "gpt-realtime"})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !core.IsKind(err, core.ErrAuth) {
				t.Errorf("error kind = %v, want auth_error", err)
			}
		})
	}
}
