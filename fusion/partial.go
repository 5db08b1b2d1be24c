package fusion

import (
	"encoding/json"
	"fmt"

	"github.com/kagwave/vision-middleware/errors"
)

// Partial is one side of a join as submitted to the coordinator. The
// payload is opaque here; it was schema-validated upstream and is carried
// into the combined event untouched.
type Partial struct {
	Key     Key
	Variant Variant

	// Payload is the partial result document (pose tag or mask payload).
	Payload json.RawMessage

	// ObservedAt is when the producing stage observed the result, unix
	// milliseconds. Zero means unknown; Submit fills in arrival time.
	ObservedAt int64
}

// Validate checks the partial before it touches the store.
func (p Partial) Validate() error {
	if err := p.Key.Validate(); err != nil {
		return err
	}
	if !p.Variant.IsValid() {
		return errors.WrapInvalid(errors.ErrInvalidData, "Partial", "Validate",
			fmt.Sprintf("unknown variant %q", p.Variant))
	}
	if len(p.Payload) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Partial", "Validate", "payload cannot be empty")
	}
	return nil
}

// slotRecord is the JSON document stored in a pending slot. It carries
// everything the joining side needs to build the combined event.
type slotRecord struct {
	Variant    Variant         `json:"variant"`
	Payload    json.RawMessage `json:"payload"`
	ObservedAt int64           `json:"observed_at"`
}

// encodeSlot serializes a partial into its slot form.
func encodeSlot(p Partial) ([]byte, error) {
	data, err := json.Marshal(slotRecord{
		Variant:    p.Variant,
		Payload:    p.Payload,
		ObservedAt: p.ObservedAt,
	})
	if err != nil {
		return nil, errors.WrapFatal(err, "fusion", "encodeSlot", "marshal slot record")
	}
	return data, nil
}

// decodeSlot deserializes a stored slot. A slot this process cannot decode
// is treated as invalid rather than transient: redelivery would hit the
// same bytes again.
func decodeSlot(data []byte) (slotRecord, error) {
	var s slotRecord
	if err := json.Unmarshal(data, &s); err != nil {
		return slotRecord{}, errors.WrapInvalid(err, "fusion", "decodeSlot", "unmarshal slot record")
	}
	if !s.Variant.IsValid() {
		return slotRecord{}, errors.WrapInvalid(errors.ErrInvalidData, "fusion", "decodeSlot",
			fmt.Sprintf("stored slot has unknown variant %q", s.Variant))
	}
	return s, nil
}
