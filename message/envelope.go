package message

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/pkg/timestamp"
)

// Envelope is the standard implementation of the Message interface.
// It combines a typed payload with metadata to form a complete message
// ready for transmission between the vision stages.
//
// Envelope is immutable after creation. All fields are set during
// construction and cannot be modified, which keeps message integrity
// through the processing pipeline.
//
// Construction uses functional options:
//
//	// Simple message (most common)
//	msg := NewEnvelope(msgType, payload, "pose-estimator")
//
//	// With a specific observation timestamp (replay/testing)
//	msg := NewEnvelope(msgType, payload, "pose-estimator", WithTime(observedAt))
type Envelope struct {
	id      string
	msgType Type
	payload Payload
	meta    Meta
}

// Option is a functional option for configuring Envelope construction.
type Option func(*Envelope)

// WithTime sets a specific creation timestamp instead of using time.Now().
// Useful for replaying recorded streams or testing.
func WithTime(createdAt time.Time) Option {
	return func(m *Envelope) {
		if defaultMeta, ok := m.meta.(*DefaultMeta); ok {
			m.meta = NewDefaultMeta(createdAt, defaultMeta.Source())
		}
	}
}

// WithMeta replaces the default metadata with a custom Meta implementation.
func WithMeta(meta Meta) Option {
	return func(m *Envelope) {
		m.meta = meta
	}
}

// NewEnvelope creates a new Envelope with optional configuration.
//
// Parameters:
//   - msgType: structured type information (domain, category, version)
//   - payload: the message payload implementing the Payload interface
//   - source: identifier of the service or stage creating this message
//   - opts: optional configuration functions
func NewEnvelope(msgType Type, payload Payload, source string, opts ...Option) *Envelope {
	m := &Envelope{
		id:      uuid.New().String(),
		msgType: msgType,
		payload: payload,
		meta:    NewDefaultMeta(time.Now(), source),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// ID returns the unique message identifier.
func (m *Envelope) ID() string {
	return m.id
}

// Type returns the structured message type.
func (m *Envelope) Type() Type {
	return m.msgType
}

// Payload returns the message payload.
func (m *Envelope) Payload() Payload {
	return m.payload
}

// Meta returns the message metadata.
func (m *Envelope) Meta() Meta {
	return m.meta
}

// Hash returns a SHA256 hash of the message content.
// The hash covers the message type and payload data, not the ID or
// metadata, so two observations of the same content hash identically.
func (m *Envelope) Hash() string {
	h := sha256.New()

	// crypto/sha256 Write never fails; the checks satisfy the interface
	if _, err := h.Write([]byte(m.msgType.String())); err != nil {
		return ""
	}

	if data, err := m.payload.MarshalJSON(); err == nil {
		if _, err := h.Write(data); err != nil {
			return ""
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Validate performs comprehensive message validation.
func (m *Envelope) Validate() error {
	if !m.msgType.IsValid() {
		return errors.WrapInvalid(errors.ErrInvalidData, "Envelope", "Validate",
			fmt.Sprintf("invalid message type: %s", m.msgType.String()))
	}

	if m.payload == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Envelope", "Validate", "payload cannot be nil")
	}

	if err := m.payload.Validate(); err != nil {
		return errors.WrapInvalid(err, "Envelope", "Validate", "invalid payload")
	}

	if m.meta == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Envelope", "Validate", "meta cannot be nil")
	}

	return nil
}

// wireFormat is the JSON wire format for Envelope.
type wireFormat struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Meta    map[string]any  `json:"meta"`
}

// MarshalJSON implements json.Marshaler for Envelope.
func (m *Envelope) MarshalJSON() ([]byte, error) {
	payloadData, err := m.payload.MarshalJSON()
	if err != nil {
		return nil, errors.WrapInvalid(err, "Envelope", "MarshalJSON", "failed to marshal payload")
	}

	// Timestamps on the wire are int64 unix milliseconds
	metaMap := map[string]any{
		"created_at":  timestamp.ToUnixMs(m.meta.CreatedAt()),
		"received_at": timestamp.ToUnixMs(m.meta.ReceivedAt()),
		"source":      m.meta.Source(),
	}

	wire := wireFormat{
		ID:      m.id,
		Type:    m.msgType,
		Payload: json.RawMessage(payloadData),
		Meta:    metaMap,
	}

	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler for Envelope.
// Requires the payload type to be registered in the package registry.
// For generic JSON processing, use the well-known type "core.json.v1"
// (GenericJSONPayload).
func (m *Envelope) UnmarshalJSON(data []byte) error {
	var wire wireFormat
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.WrapInvalid(err, "Envelope", "UnmarshalJSON", "failed to unmarshal wire format")
	}

	m.id = wire.ID
	m.msgType = wire.Type

	// timestamp.Parse accepts both int64 and string timestamp encodings
	var createdAt, receivedAt time.Time
	var source string

	createdAtMs := timestamp.Parse(wire.Meta["created_at"])
	if createdAtMs != 0 {
		createdAt = timestamp.FromUnixMs(createdAtMs)
	}

	receivedAtMs := timestamp.Parse(wire.Meta["received_at"])
	if receivedAtMs != 0 {
		receivedAt = timestamp.FromUnixMs(receivedAtMs)
	}

	if sourceStr, ok := wire.Meta["source"].(string); ok {
		source = sourceStr
	}

	m.meta = NewDefaultMetaWithReceivedAt(createdAt, receivedAt, source)

	payload := CreatePayload(m.msgType)
	if payload == nil {
		return errors.WrapInvalid(
			fmt.Errorf("unregistered payload type: %s", m.msgType.String()),
			"Envelope", "UnmarshalJSON", "payload type lookup")
	}

	if err := json.Unmarshal(wire.Payload, payload); err != nil {
		return errors.WrapInvalid(err, "Envelope", "UnmarshalJSON", "failed to unmarshal payload")
	}
	m.payload = payload

	return nil
}
