// Package backend talks to the marketplace backend: a function-RPC API
// for queries and mutations, and a local property store used by the
// demo and tests.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls named backend functions over HTTP. Every call is a POST
// of {"path", "args", "format":"json"} to /api/query or /api/mutation.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend RPC client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	Path   string `json:"path"`
	Args   any    `json:"args"`
	Format string `json:"format"`
}

type rpcResponse struct {
	Status       string          `json:"status"`
	Value        json.RawMessage `json:"value"`
	ErrorMessage string          `json:"errorMessage"`
}

// Query invokes a read-only backend function and decodes its value into out.
func (c *Client) Query(ctx context.Context, path string, args any, out any) error {
	return c.call(ctx, "/api/query", path, args, out)
}

// Mutate invokes a state-changing backend function.
func (c *Client) Mutate(ctx context.Context, path string, args any, out any) error {
	return c.call(ctx, "/api/mutation", path, args, out)
}

func (c *Client) call(ctx context.Context, endpoint, path string, args, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(rpcRequest{Path: path, Args: args, Format: "json"})
	if err != nil {
		return fmt.Errorf("encode %s args: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, data)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if rpcResp.Status == "error" {
		return fmt.Errorf("%s failed: %s", path, rpcResp.ErrorMessage)
	}
	if out != nil && len(rpcResp.Value) > 0 {
		if err := json.Unmarshal(rpcResp.Value, out); err != nil {
			return fmt.Errorf("decode %s value: %w", path, err)
		}
	}
	return nil
}
