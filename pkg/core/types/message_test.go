package types

import (
	"encoding/json"
	"testing"
)

func TestConversationMessage_AppendText(t *testing.T) {
	m := &ConversationMessage{ID: "msg_1", Role: RoleAssistant}

	for _, delta := range []string{"I found", " three apartments", " in Bondi."} {
		m.AppendText(delta)
	}

	if len(m.Parts) != 1 {
		t.Fatalf("parts = %d, want 1 coalesced text part", len(m.Parts))
	}
	if got := m.Text(); got != "I found three apartments in Bondi." {
		t.Errorf("Text() = %q", got)
	}
}

func TestConversationMessage_TextAfterToolCall(t *testing.T) {
	m := &ConversationMessage{ID: "msg_2", Role: RoleAssistant}
	m.AppendText("Searching now.")
	m.AppendToolCall(ToolCallPart{
		CallID:    "call_1",
		Name:      "searchProperties",
		Arguments: json.RawMessage(`{"location":"Bondi"}`),
	})
	m.AppendText("Here are the results.")

	if len(m.Parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(m.Parts))
	}
	if m.Parts[1].ToolCall == nil || m.Parts[1].ToolCall.Name != "searchProperties" {
		t.Errorf("part 1 = %+v, want tool call", m.Parts[1])
	}
	if got := m.Text(); got != "Searching now.Here are the results." {
		t.Errorf("Text() = %q", got)
	}
}

func TestConversationMessage_EmptyDeltaIgnored(t *testing.T) {
	m := &ConversationMessage{ID: "msg_3", Role: RoleUser}
	m.AppendText("")
	if len(m.Parts) != 0 {
		t.Errorf("empty delta created a part: %+v", m.Parts)
	}
}

func TestSearchParameters_SetSemantics(t *testing.T) {
	var p SearchParameters
	if !p.IsEmpty() {
		t.Fatal("zero value should be empty")
	}

	if !p.AddAmenity("pool") {
		t.Error("first AddAmenity should report insertion")
	}
	if p.AddAmenity("pool") {
		t.Error("duplicate AddAmenity should be a no-op")
	}
	p.AddAmenity("gym")
	if len(p.Amenities) != 2 {
		t.Errorf("amenities = %v", p.Amenities)
	}

	p.AddTag(TagPremium)
	p.AddTag(TagPremium)
	if len(p.Tags) != 1 {
		t.Errorf("tags = %v", p.Tags)
	}

	p.Reset()
	if !p.IsEmpty() {
		t.Error("Reset should clear all fields")
	}
}
