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

const geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// GeminiTranslator maps the Gemini Live (BidiGenerateContent) protocol
// onto the normalized event set.
//
// Gemini does not attach stable item IDs to transcription fragments, so
// the translator synthesizes one message ID per user/assistant turn and
// advances it on turn completion.
type GeminiTranslator struct {
	// BaseURL overrides the live endpoint (tests, proxies).
	BaseURL string

	inputTurn  int
	outputTurn int
}

// NewGeminiTranslator creates a translator for the Gemini Live API.
func NewGeminiTranslator() *GeminiTranslator {
	return &GeminiTranslator{}
}

func (t *GeminiTranslator) Name() string { return "gemini" }

func (t *GeminiTranslator) DialRequest(opts SessionOptions, secret string) (string, http.Header) {
	base := t.BaseURL
	if base == "" {
		base = geminiLiveURL
	}
	q := url.Values{}
	q.Set("key", secret)
	return base + "?" + q.Encode(), http.Header{}
}

func (t *GeminiTranslator) Setup(opts SessionOptions) []any {
	model := opts.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	declarations := make([]map[string]any, 0, len(opts.Tools))
	for _, tool := range opts.Tools {
		declarations = append(declarations, map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.InputSchema,
		})
	}

	setup := map[string]any{
		"model": model,
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
		},
		"inputAudioTranscription":  map[string]any{},
		"outputAudioTranscription": map[string]any{},
	}
	if opts.Instructions != "" {
		setup["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": opts.Instructions}},
		}
	}
	if len(declarations) > 0 {
		setup["tools"] = []map[string]any{{"functionDeclarations": declarations}}
	}

	return []any{map[string]any{"setup": setup}}
}

type geminiServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		Interrupted  bool `json:"interrupted,omitempty"`
		TurnComplete bool `json:"turnComplete,omitempty"`
		ModelTurn    *struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts,omitempty"`
		} `json:"modelTurn,omitempty"`
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription,omitempty"`
		OutputTranscription *struct {
			Text string `json:"text"`
		} `json:"outputTranscription,omitempty"`
	} `json:"serverContent,omitempty"`
	ToolCall *struct {
		FunctionCalls []struct {
			ID   string          `json:"id"`
			Name string          `json:"name"`
			Args json.RawMessage `json:"args"`
		} `json:"functionCalls,omitempty"`
	} `json:"toolCall,omitempty"`
}

func (t *GeminiTranslator) Translate(raw []byte) ([]ServerEvent, error) {
	var msg geminiServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode live message: %w", err)
	}

	if msg.SetupComplete != nil {
		return []ServerEvent{&SessionOpenedEvent{}}, nil
	}

	if msg.ToolCall != nil {
		events := make([]ServerEvent, 0, len(msg.ToolCall.FunctionCalls))
		for _, call := range msg.ToolCall.FunctionCalls {
			events = append(events, &ToolCallEvent{
				CallID:    call.ID,
				Name:      call.Name,
				Arguments: call.Args,
				MessageID: t.outputMessageID(),
			})
		}
		return events, nil
	}

	sc := msg.ServerContent
	if sc == nil {
		return nil, nil
	}

	var events []ServerEvent
	if sc.Interrupted {
		events = append(events, &InterruptionEvent{})
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, &TranscriptDeltaEvent{
			MessageID: t.inputMessageID(),
			Role:      types.RoleUser,
			Delta:     sc.InputTranscription.Text,
		})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, &TranscriptDeltaEvent{
			MessageID: t.outputMessageID(),
			Role:      types.RoleAssistant,
			Delta:     sc.OutputTranscription.Text,
		})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline audio: %w", err)
			}
			events = append(events, &AssistantAudioEvent{Data: data})
		}
	}
	if sc.TurnComplete {
		events = append(events,
			&TranscriptDoneEvent{MessageID: t.inputMessageID(), Role: types.RoleUser},
			&TranscriptDoneEvent{MessageID: t.outputMessageID(), Role: types.RoleAssistant},
			&AssistantAudioDoneEvent{},
		)
		t.inputTurn++
		t.outputTurn++
	}
	return events, nil
}

func (t *GeminiTranslator) inputMessageID() string {
	return fmt.Sprintf("gemini_user_%d", t.inputTurn)
}

func (t *GeminiTranslator) outputMessageID() string {
	return fmt.Sprintf("gemini_model_%d", t.outputTurn)
}

func (t *GeminiTranslator) AppendAudio(pcm []byte) any {
	return map[string]any{
		"realtimeInput": map[string]any{
			"audio": map[string]any{
				"mimeType": "audio/pcm;rate=16000",
				"data":     base64.StdEncoding.EncodeToString(pcm),
			},
		},
	}
}

func (t *GeminiTranslator) ToolResult(call types.ToolCallRecord, result string) []any {
	return []any{map[string]any{
		"toolResponse": map[string]any{
			"functionResponses": []map[string]any{
				{
					"id":       call.CallID,
					"name":     call.Name,
					"response": map[string]any{"output": result},
				},
			},
		},
	}}
}

func (t *GeminiTranslator) UserText(text string) []any {
	return []any{map[string]any{
		"clientContent": map[string]any{
			"turns": []map[string]any{
				{
					"role":  "user",
					"parts": []map[string]any{{"text": strings.TrimSpace(text)}},
				},
			},
			"turnComplete": true,
		},
	}}
}
