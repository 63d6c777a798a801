package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientMessage_Subscribe(t *testing.T) {
	input := []byte(`{"type":"subscribe","roomId":"room-42"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSubscribe {
		t.Fatalf("expected type %q, got %q", TypeSubscribe, msgType)
	}

	sm, ok := msg.(SubscribeMsg)
	if !ok {
		t.Fatalf("expected SubscribeMsg, got %T", msg)
	}
	if sm.RoomID != "room-42" {
		t.Errorf("expected roomId %q, got %q", "room-42", sm.RoomID)
	}
}

func TestParseClientMessage_Ping(t *testing.T) {
	msgType, msg, err := ParseClientMessage([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypePing {
		t.Fatalf("expected type %q, got %q", TypePing, msgType)
	}
	if _, ok := msg.(PingMsg); !ok {
		t.Fatalf("expected PingMsg, got %T", msg)
	}
}

func TestParseClientMessage_UnknownType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"type":"event","roomId":"r"}`))
	if err == nil {
		t.Fatal("expected error for a server-only frame type")
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"roomId":"r"}`))
	if err == nil {
		t.Fatal("expected error for a frame without a type field")
	}
}

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestNewServerMessage_Event(t *testing.T) {
	payload := EventMsg{
		RoomID:  "room-42",
		Event:   "new_message",
		Payload: json.RawMessage(`{"id":"m1"}`),
	}

	data, err := NewServerMessage(TypeEvent, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeEvent {
		t.Errorf("expected type %q, got %v", TypeEvent, decoded["type"])
	}
	if decoded["roomId"] != "room-42" {
		t.Errorf("expected roomId %q, got %v", "room-42", decoded["roomId"])
	}
	inner, ok := decoded["payload"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested payload object, got %T", decoded["payload"])
	}
	if inner["id"] != "m1" {
		t.Errorf("expected payload id m1, got %v", inner["id"])
	}
}

func TestNewServerMessage_TypeInjected(t *testing.T) {
	data, err := NewServerMessage(TypeError, ErrorMsg{Code: "UNAUTHORIZED", Message: "missing token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded ErrorMsg
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Type != TypeError {
		t.Errorf("expected injected type %q, got %q", TypeError, decoded.Type)
	}
	if decoded.Code != "UNAUTHORIZED" {
		t.Errorf("expected code UNAUTHORIZED, got %q", decoded.Code)
	}
}
