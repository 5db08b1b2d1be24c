package message

import "encoding/json"

// Payload represents the data carried by a message.
// All message payloads must implement this interface to provide
// schema information, validation, and serialization capabilities.
//
// Example implementation:
//
//	type PoseTagPayload struct {
//	    StreamID    string `json:"stream_id"`
//	    FrameNumber uint64 `json:"frame_number"`
//	    InstanceID  string `json:"instance_id"`
//	    Tag         string `json:"tag"`
//	}
//
//	func (p *PoseTagPayload) Schema() Type {
//	    return Type{Domain: "pose", Category: "tag", Version: "v1"}
//	}
//
//	func (p *PoseTagPayload) Validate() error {
//	    if p.StreamID == "" {
//	        return errors.New("stream ID is required")
//	    }
//	    return nil
//	}
//
//	func (p *PoseTagPayload) MarshalJSON() ([]byte, error) {
//	    // Use alias to avoid infinite recursion
//	    type Alias PoseTagPayload
//	    return json.Marshal((*Alias)(p))
//	}
//
//	func (p *PoseTagPayload) UnmarshalJSON(data []byte) error {
//	    // Use alias to avoid infinite recursion
//	    type Alias PoseTagPayload
//	    return json.Unmarshal(data, (*Alias)(p))
//	}
type Payload interface {
	// Schema returns the Type that defines this payload's structure.
	// This enables type-safe routing and processing throughout the system.
	Schema() Type

	// Validate checks the payload data for correctness.
	// Returns nil if valid, or an error describing the validation failure.
	// Should validate:
	//   - Required fields are present
	//   - Values are within acceptable ranges
	//   - Key fields are safe to embed in storage keys and subjects
	Validate() error

	// JSON serialization using standard Go interfaces.
	// Payloads must implement json.Marshaler and json.Unmarshaler
	// for deterministic serialization. The same payload must always
	// produce the same JSON output.
	json.Marshaler
	json.Unmarshaler
}
