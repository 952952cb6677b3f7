package realtime

import (
	"encoding/json"

	"github.com/haus-ai/concierge/pkg/core/types"
)

// ServerEvent is the interface for all normalized inbound session events.
// Provider wire formats are mapped onto this set by a Translator so the
// conversation layer never sees provider-specific shapes.
type ServerEvent interface {
	// EventType returns the event type string for logging/serialization.
	EventType() string
}

// SessionOpenedEvent is emitted once the realtime channel is ready.
type SessionOpenedEvent struct {
	SessionID string `json:"session_id,omitempty"`
}

func (e *SessionOpenedEvent) EventType() string { return "session.opened" }

// SpeechStartedEvent is emitted when the provider detects user speech.
type SpeechStartedEvent struct{}

func (e *SpeechStartedEvent) EventType() string { return "speech.started" }

// SpeechStoppedEvent is emitted when the provider detects end of user speech.
type SpeechStoppedEvent struct{}

func (e *SpeechStoppedEvent) EventType() string { return "speech.stopped" }

// TranscriptDeltaEvent carries an incremental transcript fragment for one
// message. Deltas sharing a MessageID arrive in order and are appended.
type TranscriptDeltaEvent struct {
	MessageID string     `json:"message_id"`
	Role      types.Role `json:"role"`
	Delta     string     `json:"delta"`
}

func (e *TranscriptDeltaEvent) EventType() string { return "transcript.delta" }

// TranscriptDoneEvent marks a message transcript as final. Text, when
// non-empty, is the authoritative full transcript for the message.
type TranscriptDoneEvent struct {
	MessageID string     `json:"message_id"`
	Role      types.Role `json:"role"`
	Text      string     `json:"text,omitempty"`
}

func (e *TranscriptDoneEvent) EventType() string { return "transcript.done" }

// AssistantAudioEvent carries one chunk of decoded assistant PCM audio.
type AssistantAudioEvent struct {
	Data []byte `json:"-"`
}

func (e *AssistantAudioEvent) EventType() string { return "assistant.audio" }

// AssistantAudioDoneEvent marks the end of the current assistant audio turn.
type AssistantAudioDoneEvent struct{}

func (e *AssistantAudioDoneEvent) EventType() string { return "assistant.audio.done" }

// ToolCallEvent is a model-issued request to execute a named tool. The
// caller must send a correlated result before the model continues,
// except for session-ending tools.
type ToolCallEvent struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	MessageID string          `json:"message_id,omitempty"`
}

func (e *ToolCallEvent) EventType() string { return "tool.call" }

// InterruptionEvent signals user barge-in: all queued assistant audio
// must be flushed and playback scheduling reset. It is an instruction,
// not a state transition.
type InterruptionEvent struct{}

func (e *InterruptionEvent) EventType() string { return "interruption" }

// ErrorEvent carries a provider- or channel-level error.
type ErrorEvent struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// ClosedEvent is emitted exactly once when the channel will deliver no
// further events.
type ClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *ClosedEvent) EventType() string { return "session.closed" }
