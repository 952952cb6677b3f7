package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/haus-ai/concierge/internal/metrics"
	"github.com/haus-ai/concierge/pkg/core/types"
)

// EndConversationTool is the session-terminating tool name. Its call is
// honored without sending a result back to the model and without
// generating a farewell reply.
const EndConversationTool = "endConversation"

// maxResultChars caps serialized tool results before they go back to
// the model; oversized payloads blow the model's context for no gain.
const maxResultChars = 15000

// DispatchResult is the outcome of one tool call.
type DispatchResult struct {
	// Output is the JSON result payload to send back to the model.
	// Empty when EndSession is set.
	Output string
	// EndSession is set when the call terminates the conversation.
	EndSession bool
}

// Dispatcher executes tool calls against a registry. Handler failures
// and unknown tools always produce a result payload so the model is
// never left waiting on a correlated call.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// Timeout bounds one handler execution. Zero means 30s.
	Timeout time.Duration
}

// NewDispatcher creates a dispatcher over the given registry. Metrics
// may be nil.
func NewDispatcher(registry *Registry, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: m}
}

// Dispatch executes one model-issued call and shapes its result.
func (d *Dispatcher) Dispatch(ctx context.Context, call types.ToolCallRecord) DispatchResult {
	start := time.Now()

	if call.Name == EndConversationTool {
		d.logger.Info("conversation end requested by model", "call_id", call.CallID)
		d.record(call.Name, "end_session", start)
		return DispatchResult{EndSession: true}
	}

	handler, ok := d.registry.Lookup(call.Name)
	if !ok {
		// The model hallucinated a tool. Acknowledge and move on so the
		// turn completes instead of stalling.
		d.logger.Warn("unknown tool requested", "tool", call.Name, "call_id", call.CallID)
		d.record(call.Name, "unknown", start)
		return DispatchResult{Output: marshalResult(map[string]any{
			"success":  true,
			"toolName": call.Name,
		})}
	}

	timeout := d.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := handler(ctx, call.Arguments)
	if err != nil {
		d.logger.Warn("tool handler failed", "tool", call.Name, "error", err)
		d.record(call.Name, "error", start)
		return DispatchResult{Output: marshalResult(map[string]any{
			"success": false,
			"error":   err.Error(),
		})}
	}

	d.record(call.Name, "ok", start)
	return DispatchResult{Output: truncateResult(marshalResult(envelope(value)))}
}

// envelope wraps a handler value in the success shape unless the
// handler already returned a map carrying its own "success" key.
func envelope(value any) any {
	if m, ok := value.(map[string]any); ok {
		if _, has := m["success"]; has {
			return m
		}
		out := map[string]any{"success": true}
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	return map[string]any{"success": true, "result": value}
}

func marshalResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"success":false,"error":"unserializable tool result"}`
	}
	return string(data)
}

func truncateResult(s string) string {
	if len(s) <= maxResultChars {
		return s
	}
	return s[:maxResultChars]
}

func (d *Dispatcher) record(tool, status string, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordToolCall(tool, status, time.Since(start))
}
