// Package message provides the wire types for the vision pipeline: envelopes,
// typed payloads, the payload registry, and inbound schema validation.
//
// # Architecture
//
// The package follows a domain-agnostic core with three concepts:
//
// 1. Messages - envelopes that combine typed payloads with metadata
// 2. Payloads - typed data that declares its own schema and validation
// 3. Metadata - information about message lifecycle and origin
//
// On top of the core sit the vision payload types (pose tags, segmentation
// masks, combined events) and the schema Validator applied to inbound
// partials.
//
// # Message Structure
//
// Every message consists of:
//   - A unique ID for tracking and deduplication
//   - A structured Type (domain, category, version), serialized as the
//     dotted string "domain.category.version"
//   - A Payload containing the actual data
//   - Metadata about creation time, receipt time, and source
//   - A content-based hash for integrity
//
// # Message Types
//
// The pipeline defines four types:
//
//	pose.tag.v1          pose tag partial from the pose estimation stage
//	segmentation.mask.v1 segmentation mask partial
//	fusion.combined.v1   fused pose+mask event emitted by this service
//	core.json.v1         generic JSON for tests and tooling
//
// # Usage Example
//
//	payload := &message.PoseTagPayload{
//	    StreamID:    "v1",
//	    FrameNumber: 10,
//	    InstanceID:  "a",
//	    Tag:         "T1",
//	}
//
//	msg := message.NewEnvelope(message.PoseTagType, payload, "pose-estimator")
//	if err := msg.Validate(); err != nil {
//	    // reject before publishing
//	}
//
//	data, err := json.Marshal(msg)
//	// publish data to vision.partial.pose.v1
//
// Deserialization recreates the typed payload through the registry:
//
//	var decoded message.Envelope
//	if err := json.Unmarshal(data, &decoded); err != nil {
//	    // unknown type or malformed wire format
//	}
//	pose := decoded.Payload().(*message.PoseTagPayload)
//
// # Payload Registry
//
// Payload types register a factory at init time so UnmarshalJSON can rebuild
// typed payloads from the wire:
//
//	err := message.RegisterPayload(&message.PayloadRegistration{
//	    Type:        message.PoseTagType,
//	    Description: "Pose tag partial",
//	    Factory:     func() message.Payload { return &message.PoseTagPayload{} },
//	})
//
// Unregistered types fail deserialization with an invalid-class error rather
// than producing an untyped payload.
//
// # Schema Validation
//
// Validator checks raw payload bytes against embedded JSON Schemas
// (draft-07) before deserialization. The consumer applies it to everything
// arriving on the partial subjects, so malformed input is terminated as
// poison instead of being redelivered forever:
//
//	validator, err := message.NewValidator()
//	if err := validator.Validate(message.PoseTagType, payloadBytes); err != nil {
//	    // invalid-class error: terminate, do not retry
//	}
//
// # Key Fields
//
// StreamID and InstanceID become storage-key and subject tokens, so they are
// restricted to [A-Za-z0-9_-]+ everywhere. ValidKeyField exposes the rule
// for other packages that build keys from the same fields.
package message
