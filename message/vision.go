package message

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/kagwave/vision-middleware/errors"
)

// Message types produced and consumed by the vision pipeline.
var (
	// PoseTagType identifies pose tag partials from the pose estimation stage.
	PoseTagType = Type{Domain: "pose", Category: "tag", Version: "v1"}

	// SegmentationMaskType identifies segmentation mask partials.
	SegmentationMaskType = Type{Domain: "segmentation", Category: "mask", Version: "v1"}

	// CombinedEventType identifies fused pose+mask events emitted downstream.
	CombinedEventType = Type{Domain: "fusion", Category: "combined", Version: "v1"}
)

// keyFieldRegex restricts identifier fields that become storage-key and
// subject tokens. Dots are excluded so the dotted composite key stays
// unambiguous.
var keyFieldRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidKeyField reports whether s is safe to embed in a storage key or
// subject token: non-empty, limited to [A-Za-z0-9_-].
func ValidKeyField(s string) bool {
	return keyFieldRegex.MatchString(s)
}

func validateKeyField(component, field, value string) error {
	if !ValidKeyField(value) {
		return errors.WrapInvalid(errors.ErrInvalidKey, component, "Validate",
			fmt.Sprintf("%s %q must match [A-Za-z0-9_-]+", field, value))
	}
	return nil
}

// PoseTagPayload is a pose tag partial for one tracked instance in one frame.
type PoseTagPayload struct {
	StreamID    string `json:"stream_id"`
	FrameNumber uint64 `json:"frame_number"`
	InstanceID  string `json:"instance_id"`
	Tag         string `json:"tag"`
	ObservedAt  int64  `json:"observed_at,omitempty"` // unix ms at the producing stage
}

// Schema returns the payload type identifier.
func (p *PoseTagPayload) Schema() Type {
	return PoseTagType
}

// Validate checks required fields and key-field safety.
func (p *PoseTagPayload) Validate() error {
	if err := validateKeyField("PoseTagPayload", "stream_id", p.StreamID); err != nil {
		return err
	}
	if err := validateKeyField("PoseTagPayload", "instance_id", p.InstanceID); err != nil {
		return err
	}
	if p.Tag == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "PoseTagPayload", "Validate", "tag cannot be empty")
	}
	if p.ObservedAt < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "PoseTagPayload", "Validate", "observed_at cannot be negative")
	}
	return nil
}

// MarshalJSON serializes the payload.
func (p *PoseTagPayload) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias PoseTagPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON deserializes the payload.
func (p *PoseTagPayload) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias PoseTagPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// SegmentationMaskPayload is a segmentation mask partial for one tracked
// instance in one frame. Mask is an opaque encoded blob (for example
// base64 RLE); this service never decodes it.
type SegmentationMaskPayload struct {
	StreamID    string `json:"stream_id"`
	FrameNumber uint64 `json:"frame_number"`
	InstanceID  string `json:"instance_id"`
	Mask        string `json:"mask"`
	ObservedAt  int64  `json:"observed_at,omitempty"` // unix ms at the producing stage
}

// Schema returns the payload type identifier.
func (p *SegmentationMaskPayload) Schema() Type {
	return SegmentationMaskType
}

// Validate checks required fields and key-field safety.
func (p *SegmentationMaskPayload) Validate() error {
	if err := validateKeyField("SegmentationMaskPayload", "stream_id", p.StreamID); err != nil {
		return err
	}
	if err := validateKeyField("SegmentationMaskPayload", "instance_id", p.InstanceID); err != nil {
		return err
	}
	if p.Mask == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "SegmentationMaskPayload", "Validate", "mask cannot be empty")
	}
	if p.ObservedAt < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "SegmentationMaskPayload", "Validate", "observed_at cannot be negative")
	}
	return nil
}

// MarshalJSON serializes the payload.
func (p *SegmentationMaskPayload) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias SegmentationMaskPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON deserializes the payload.
func (p *SegmentationMaskPayload) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias SegmentationMaskPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// CombinedEventPayload is the fused result for one (stream, frame, instance)
// correlation: both partials plus join timing observed by the fusion stage.
type CombinedEventPayload struct {
	StreamID    string `json:"stream_id"`
	FrameNumber uint64 `json:"frame_number"`
	InstanceID  string `json:"instance_id"`

	// Pose and Mask carry the partial payloads exactly as they arrived.
	Pose json.RawMessage `json:"pose"`
	Mask json.RawMessage `json:"mask"`

	// Join timing in unix ms: when the first partial was stored, when the
	// join completed, and the spread between the two arrivals.
	FirstObservedAt int64 `json:"first_observed_at"`
	JoinedAt        int64 `json:"joined_at"`
	JoinGapMs       int64 `json:"join_gap_ms"`
}

// Schema returns the payload type identifier.
func (p *CombinedEventPayload) Schema() Type {
	return CombinedEventType
}

// Validate checks required fields, key-field safety, and join timing.
func (p *CombinedEventPayload) Validate() error {
	if err := validateKeyField("CombinedEventPayload", "stream_id", p.StreamID); err != nil {
		return err
	}
	if err := validateKeyField("CombinedEventPayload", "instance_id", p.InstanceID); err != nil {
		return err
	}
	if len(p.Pose) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "CombinedEventPayload", "Validate", "pose cannot be empty")
	}
	if len(p.Mask) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "CombinedEventPayload", "Validate", "mask cannot be empty")
	}
	if p.JoinGapMs < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "CombinedEventPayload", "Validate", "join_gap_ms cannot be negative")
	}
	if p.JoinedAt < p.FirstObservedAt {
		return errors.WrapInvalid(errors.ErrInvalidData, "CombinedEventPayload", "Validate",
			"joined_at cannot precede first_observed_at")
	}
	return nil
}

// MarshalJSON serializes the payload.
func (p *CombinedEventPayload) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias CombinedEventPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON deserializes the payload.
func (p *CombinedEventPayload) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias CombinedEventPayload
	return json.Unmarshal(data, (*Alias)(p))
}

func init() {
	registrations := []*PayloadRegistration{
		{
			Type:        PoseTagType,
			Description: "Pose tag partial for one tracked instance in one frame",
			Factory:     func() Payload { return &PoseTagPayload{} },
			Example: map[string]any{
				"stream_id":    "v1",
				"frame_number": 10,
				"instance_id":  "a",
				"tag":          "T1",
				"observed_at":  1700000000000,
			},
		},
		{
			Type:        SegmentationMaskType,
			Description: "Segmentation mask partial for one tracked instance in one frame",
			Factory:     func() Payload { return &SegmentationMaskPayload{} },
			Example: map[string]any{
				"stream_id":    "v1",
				"frame_number": 10,
				"instance_id":  "a",
				"mask":         "TTE=",
				"observed_at":  1700000000000,
			},
		},
		{
			Type:        CombinedEventType,
			Description: "Fused pose+mask event for one correlation",
			Factory:     func() Payload { return &CombinedEventPayload{} },
			Example: map[string]any{
				"stream_id":         "v1",
				"frame_number":      10,
				"instance_id":       "a",
				"pose":              map[string]any{"tag": "T1"},
				"mask":              map[string]any{"mask": "TTE="},
				"first_observed_at": 1700000000000,
				"joined_at":         1700000000450,
				"join_gap_ms":       450,
			},
		},
	}

	for _, reg := range registrations {
		if err := RegisterPayload(reg); err != nil {
			panic("failed to register vision payload: " + err.Error())
		}
	}
}
