package realtime

import (
	"net/http"

	"github.com/haus-ai/concierge/pkg/core/types"
)

// SessionOptions configures a realtime session independent of provider.
type SessionOptions struct {
	// Model is the provider model identifier.
	Model string
	// Voice selects the assistant voice.
	Voice string
	// Instructions is the system prompt for the conversation.
	Instructions string
	// Tools is the fixed tool surface exposed to the model.
	Tools []types.Tool
	// InputSampleRate is the microphone PCM sample rate in Hz.
	InputSampleRate int
}

// Translator maps between one provider's wire format and the normalized
// event set. A different voice provider is substituted by swapping the
// translator at session construction; nothing upstream branches on the
// provider.
//
// Translate maps one inbound provider payload to zero or more normalized
// events. Unknown payload types return an empty slice, never an error,
// so a provider can add event types without breaking sessions.
type Translator interface {
	// Name identifies the provider ("openai", "gemini").
	Name() string

	// DialRequest returns the websocket URL and headers for the realtime
	// handshake, given the ephemeral credential minted by the backend.
	DialRequest(opts SessionOptions, secret string) (string, http.Header)

	// Setup returns the control messages sent once the channel opens.
	Setup(opts SessionOptions) []any

	// Translate maps an inbound payload to normalized events.
	Translate(raw []byte) ([]ServerEvent, error)

	// AppendAudio shapes an outbound microphone PCM frame.
	AppendAudio(pcm []byte) any

	// ToolResult shapes the outbound messages for a correlated tool result.
	ToolResult(call types.ToolCallRecord, result string) []any

	// UserText shapes a typed user turn (text-only fallback).
	UserText(text string) []any
}
