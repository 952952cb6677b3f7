package types

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessagePart is one fragment of a conversation turn: either text or a
// tool call. Exactly one of Text and ToolCall is set.
type MessagePart struct {
	Text     string        `json:"text,omitempty"`
	ToolCall *ToolCallPart `json:"toolCall,omitempty"`
}

// ToolCallPart records a model-issued tool invocation inside a message.
type ToolCallPart struct {
	CallID    string          `json:"callId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    string          `json:"result,omitempty"`
}

// ConversationMessage is one turn of the conversation. It is created on
// the first partial event for a turn, mutated in place by later deltas
// sharing the same ID, and marked completed on a done event.
type ConversationMessage struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Parts     []MessagePart `json:"parts"`
	Completed bool          `json:"completed"`
}

// AppendText appends delta text to the trailing text part, creating one
// if the message ends with a tool call or is empty. Deltas must be
// applied in arrival order.
func (m *ConversationMessage) AppendText(delta string) {
	if delta == "" {
		return
	}
	if n := len(m.Parts); n > 0 && m.Parts[n-1].ToolCall == nil {
		m.Parts[n-1].Text += delta
		return
	}
	m.Parts = append(m.Parts, MessagePart{Text: delta})
}

// AppendToolCall records a tool call as a new part.
func (m *ConversationMessage) AppendToolCall(call ToolCallPart) {
	m.Parts = append(m.Parts, MessagePart{ToolCall: &call})
}

// Text returns the concatenated text content of all text parts.
func (m *ConversationMessage) Text() string {
	var out string
	for _, part := range m.Parts {
		if part.ToolCall == nil {
			out += part.Text
		}
	}
	return out
}

// ToolCallRecord is an ephemeral correlation entry held between a
// tool-call event arriving and its result being sent back.
type ToolCallRecord struct {
	CallID    string          `json:"callId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	MessageID string          `json:"messageId"`
}
