package message

// Message is the unit of data flow between the vision stages. Messages carry
// typed payloads with metadata from the upstream producers, through the
// fusion coordinator, and out to the fused-event subscribers.
//
// Design principles:
//   - Infrastructure-agnostic: messages carry only data, no routing or storage logic
//   - Typed payloads: the payload declares its own schema and validation rules
//   - Flexible metadata: the Meta interface allows different metadata implementations
//   - Content-addressable: Hash enables deduplication and referencing
//
// Example:
//
//	msg := NewEnvelope(
//	    PoseTagType,
//	    posePayload,
//	    "pose-estimator",
//	)
type Message interface {
	// ID returns a unique identifier for this message instance.
	// Typically a UUID, this ID is immutable and globally unique.
	ID() string

	// Type returns structured type information used for routing and processing.
	Type() Type

	// Payload returns the typed message payload.
	Payload() Payload

	// Meta returns metadata about the message lifecycle and origin.
	// Includes creation time, receipt time, and source service information.
	Meta() Meta

	// Hash returns a content-based hash for deduplication and storage.
	// The hash is computed from the message type and payload data.
	Hash() string

	// Validate performs comprehensive validation of the message.
	// Checks message type validity, payload presence, and payload-specific validation.
	Validate() error
}
