package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/haus-ai/concierge/pkg/core/types"
)

const openaiRealtimeURL = "wss://api.openai.com/v1/realtime"

// OpenAITranslator maps the OpenAI realtime event protocol onto the
// normalized event set.
type OpenAITranslator struct {
	// BaseURL overrides the realtime endpoint (tests, proxies).
	BaseURL string
}

// NewOpenAITranslator creates a translator for the OpenAI realtime API.
func NewOpenAITranslator() *OpenAITranslator {
	return &OpenAITranslator{}
}

func (t *OpenAITranslator) Name() string { return "openai" }

func (t *OpenAITranslator) DialRequest(opts SessionOptions, secret string) (string, http.Header) {
	base := t.BaseURL
	if base == "" {
		base = openaiRealtimeURL
	}
	q := url.Values{}
	q.Set("model", opts.Model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+secret)
	headers.Set("OpenAI-Beta", "realtime=v1")
	return base + "?" + q.Encode(), headers
}

func (t *OpenAITranslator) Setup(opts SessionOptions) []any {
	tools := make([]map[string]any, 0, len(opts.Tools))
	for _, tool := range opts.Tools {
		tools = append(tools, map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.InputSchema,
		})
	}

	session := map[string]any{
		"modalities":                []string{"text", "audio"},
		"instructions":              opts.Instructions,
		"input_audio_format":        "pcm16",
		"output_audio_format":       "pcm16",
		"input_audio_transcription": map[string]any{"model": "whisper-1"},
		"turn_detection":            map[string]any{"type": "server_vad"},
		"tools":                     tools,
	}
	if opts.Voice != "" {
		session["voice"] = opts.Voice
	}

	return []any{map[string]any{
		"type":    "session.update",
		"session": session,
	}}
}

// openaiServerEvent is the superset of fields across inbound event types.
type openaiServerEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Session    *struct {
		ID string `json:"id"`
	} `json:"session,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *OpenAITranslator) Translate(raw []byte) ([]ServerEvent, error) {
	var ev openaiServerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode realtime event: %w", err)
	}

	switch ev.Type {
	case "session.created":
		var id string
		if ev.Session != nil {
			id = ev.Session.ID
		}
		return []ServerEvent{&SessionOpenedEvent{SessionID: id}}, nil

	case "input_audio_buffer.speech_started":
		return []ServerEvent{&SpeechStartedEvent{}}, nil

	case "input_audio_buffer.speech_stopped":
		return []ServerEvent{&SpeechStoppedEvent{}}, nil

	case "conversation.item.input_audio_transcription.delta":
		return []ServerEvent{&TranscriptDeltaEvent{
			MessageID: ev.ItemID,
			Role:      types.RoleUser,
			Delta:     ev.Delta,
		}}, nil

	case "conversation.item.input_audio_transcription.completed":
		return []ServerEvent{&TranscriptDoneEvent{
			MessageID: ev.ItemID,
			Role:      types.RoleUser,
			Text:      ev.Transcript,
		}}, nil

	case "response.audio_transcript.delta":
		return []ServerEvent{&TranscriptDeltaEvent{
			MessageID: ev.ItemID,
			Role:      types.RoleAssistant,
			Delta:     ev.Delta,
		}}, nil

	case "response.audio_transcript.done":
		return []ServerEvent{&TranscriptDoneEvent{
			MessageID: ev.ItemID,
			Role:      types.RoleAssistant,
			Text:      ev.Transcript,
		}}, nil

	case "response.audio.delta":
		data, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta: %w", err)
		}
		return []ServerEvent{&AssistantAudioEvent{Data: data}}, nil

	case "response.audio.done":
		return []ServerEvent{&AssistantAudioDoneEvent{}}, nil

	case "response.function_call_arguments.done":
		return []ServerEvent{&ToolCallEvent{
			CallID:    ev.CallID,
			Name:      ev.Name,
			Arguments: json.RawMessage(ev.Arguments),
			MessageID: ev.ItemID,
		}}, nil

	case "error":
		out := &ErrorEvent{Message: "realtime error"}
		if ev.Error != nil {
			out.Code = ev.Error.Code
			out.Message = ev.Error.Message
		}
		return []ServerEvent{out}, nil

	default:
		// Unknown types are dropped, not fatal.
		return nil, nil
	}
}

func (t *OpenAITranslator) AppendAudio(pcm []byte) any {
	return map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}
}

func (t *OpenAITranslator) ToolResult(call types.ToolCallRecord, result string) []any {
	return []any{
		map[string]any{
			"type": "conversation.item.create",
			"item": map[string]any{
				"type":    "function_call_output",
				"call_id": call.CallID,
				"output":  result,
			},
		},
		map[string]any{"type": "response.create"},
	}
}

func (t *OpenAITranslator) UserText(text string) []any {
	return []any{
		map[string]any{
			"type": "conversation.item.create",
			"item": map[string]any{
				"type": "message",
				"role": "user",
				"content": []map[string]any{
					{"type": "input_text", "text": strings.TrimSpace(text)},
				},
			},
		},
		map[string]any{"type": "response.create"},
	}
}
