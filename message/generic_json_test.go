package message

import (
	"encoding/json"
	"testing"
)

func TestGenericJSONPayload_Validate(t *testing.T) {
	valid := NewGenericJSON(map[string]any{"stream_id": "v1"})
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	empty := NewGenericJSON(map[string]any{})
	if err := empty.Validate(); err != nil {
		t.Errorf("empty map should be valid: %v", err)
	}

	nilData := &GenericJSONPayload{}
	if err := nilData.Validate(); err == nil {
		t.Error("nil data should fail validation")
	}
}

func TestGenericJSONPayload_Schema(t *testing.T) {
	p := &GenericJSONPayload{}
	if !p.Schema().Equal(GenericJSONType) {
		t.Errorf("Schema() = %v, want %v", p.Schema(), GenericJSONType)
	}
}

func TestGenericJSONPayload_EnvelopeRoundTrip(t *testing.T) {
	payload := NewGenericJSON(map[string]any{
		"stream_id": "v1",
		"note":      "free-form",
	})

	original := NewEnvelope(GenericJSONType, payload, "debug-tool")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	decodedPayload, ok := decoded.Payload().(*GenericJSONPayload)
	if !ok {
		t.Fatalf("payload is not a GenericJSONPayload, got %T", decoded.Payload())
	}

	if decodedPayload.Data["stream_id"] != "v1" {
		t.Errorf("round trip lost data: got %v", decodedPayload.Data)
	}
	if decodedPayload.Data["note"] != "free-form" {
		t.Errorf("round trip lost data: got %v", decodedPayload.Data)
	}
}
