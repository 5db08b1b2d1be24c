package message

import (
	"encoding/json"

	"github.com/kagwave/vision-middleware/errors"
)

// init registers the GenericJSON payload type so Envelope.UnmarshalJSON can
// recreate GenericJSON payloads when the message type is "core.json.v1".
func init() {
	err := RegisterPayload(&PayloadRegistration{
		Type:        GenericJSONType,
		Description: "Generic JSON payload for testing, prototyping, and tooling",
		Factory: func() Payload {
			return &GenericJSONPayload{}
		},
		Example: map[string]any{
			"data": map[string]any{
				"stream_id": "v1",
				"note":      "free-form",
			},
		},
	})
	if err != nil {
		panic("failed to register GenericJSON payload: " + err.Error())
	}
}

// GenericJSONType is the well-known type for generic JSON processing.
var GenericJSONType = Type{Domain: "core", Category: "json", Version: "v1"}

// GenericJSONPayload provides a simple, explicitly flexible payload type
// for testing, prototyping, and tooling flows.
//
// This is an intentional, well-known type (core.json.v1) designed for:
//   - Integration testing
//   - Debug tooling that injects arbitrary JSON
//   - Replay of recorded data whose schema is not modeled here
//
// Example usage:
//
//	payload := &GenericJSONPayload{
//	    Data: map[string]any{
//	        "stream_id": "v1",
//	        "note":      "free-form",
//	    },
//	}
type GenericJSONPayload struct {
	// Data contains the JSON payload as a map, supporting arbitrary JSON
	// structures.
	Data map[string]any `json:"data"`
}

// NewGenericJSON creates a new GenericJSON payload with the given data.
func NewGenericJSON(data map[string]any) *GenericJSONPayload {
	return &GenericJSONPayload{
		Data: data,
	}
}

// Schema returns the payload type identifier for GenericJSON.
// Always returns core.json.v1.
func (g *GenericJSONPayload) Schema() Type {
	return GenericJSONType
}

// Validate ensures the data map is not nil.
func (g *GenericJSONPayload) Validate() error {
	if g.Data == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "GenericJSONPayload", "Validate", "data cannot be nil")
	}
	return nil
}

// MarshalJSON serializes the GenericJSON payload to JSON format.
func (g *GenericJSONPayload) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias GenericJSONPayload
	return json.Marshal((*Alias)(g))
}

// UnmarshalJSON deserializes JSON data into the GenericJSON payload.
func (g *GenericJSONPayload) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias GenericJSONPayload
	return json.Unmarshal(data, (*Alias)(g))
}
