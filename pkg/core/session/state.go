// Package session implements the conversation state machine: it owns
// the transcript, drives the realtime transport, routes tool calls
// through the dispatcher, and moves audio between the adapters and the
// channel.
package session

// Status is the lifecycle phase of a conversation.
type Status int

const (
	// StatusIdle means no conversation has started.
	StatusIdle Status = iota
	// StatusConnecting means credential fetch and channel setup are in flight.
	StatusConnecting
	// StatusActive means the channel is open and turns are flowing.
	StatusActive
	// StatusClosed means the conversation ended normally.
	StatusClosed
	// StatusError means the conversation ended on a fault. The
	// transcript up to the fault is retained.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a point-in-time snapshot of the conversation.
type State struct {
	Status Status
	// UserSpeaking is set between speech-start and speech-stop detection.
	UserSpeaking bool
	// AssistantSpeaking is set while assistant audio is being produced.
	AssistantSpeaking bool
	// Listening is set while the microphone is captured and unmuted.
	Listening bool
	// Err holds the fault that moved the session to StatusError.
	Err error
}
