// Package tools implements the conversation tool surface: a registry of
// named, schema-described functions and a dispatcher that executes
// model-issued calls and shapes their results.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/haus-ai/concierge/pkg/core/types"
)

// Handler executes one tool call. The returned value is serialized into
// the result payload; a non-nil error becomes a soft failure result,
// never a session fault.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Registry holds the fixed tool surface for a session. Tools are
// registered before the session starts and never change mid-session.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]types.Tool
	handlers map[string]Handler
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]types.Tool),
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool and its handler. Re-registering a name replaces
// the previous entry.
func (r *Registry) Register(tool types.Tool, handler Handler) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", tool.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
	r.handlers[tool.Name] = handler
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *Registry) MustRegister(tool types.Tool, handler Handler) {
	if err := r.Register(tool, handler); err != nil {
		panic(err)
	}
}

// Tools returns all registered tool definitions, sorted by name so the
// advertised surface is stable.
func (r *Registry) Tools() []types.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the handler for name, or false.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}
