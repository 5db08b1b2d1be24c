package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kagwave/vision-middleware/errors"
)

// Keyable represents types that can be converted to dotted-notation keys.
// Dotted keys line up with NATS subject tokens, so the same identifier
// works for routing, storage, and wildcard queries.
type Keyable interface {
	// Key returns the dotted notation representation of this identifier.
	// Examples: "pose.tag.v1", "fusion.combined.v1"
	Key() string
}

// Type provides structured type information for messages.
// It identifies the domain, category, and schema version of each message
// and serializes as the dotted string "domain.category.version" on the wire.
//
// Type constants live next to the payloads that define them; this package
// only provides the type definition itself.
//
// Example definition:
//
//	var PoseTagType = message.Type{
//	    Domain:   "pose",
//	    Category: "tag",
//	    Version:  "v1",
//	}
type Type struct {
	// Domain identifies the producing stage.
	// Examples: "pose", "segmentation", "fusion"
	Domain string

	// Category identifies the specific message type within the domain.
	// Examples: "tag", "mask", "combined"
	Category string

	// Version identifies the schema version.
	// Format: "v1", "v2", etc. Enables schema evolution.
	Version string
}

// Key returns the dotted notation representation: "domain.category.version"
// This implements the Keyable interface.
func (mt Type) Key() string {
	return fmt.Sprintf("%s.%s.%s", mt.Domain, mt.Category, mt.Version)
}

// String returns the same as Key()
func (mt Type) String() string {
	return mt.Key()
}

// IsValid checks if the Type has all required fields populated
// with non-empty values.
func (mt Type) IsValid() bool {
	return mt.Domain != "" && mt.Category != "" && mt.Version != ""
}

// Equal compares two Type instances for equality.
func (mt Type) Equal(other Type) bool {
	return mt.Domain == other.Domain &&
		mt.Category == other.Category &&
		mt.Version == other.Version
}

// MarshalJSON serializes the type as its dotted string form.
func (mt Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(mt.Key())
}

// UnmarshalJSON parses the dotted string form back into a structured type.
func (mt *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.WrapInvalid(err, "Type", "UnmarshalJSON", "type must be a string")
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*mt = parsed
	return nil
}

// ParseType creates a Type from dotted string format.
// Expects exactly 3 parts: domain.category.version
// Returns an error if the format is invalid.
func ParseType(s string) (Type, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Type{}, errors.WrapInvalid(errors.ErrInvalidData, "Type", "ParseType",
			fmt.Sprintf("expected 3 parts, got %d", len(parts)))
	}

	for i, part := range parts {
		if part == "" {
			return Type{}, errors.WrapInvalid(errors.ErrInvalidData, "Type", "ParseType",
				fmt.Sprintf("part %d is empty", i+1))
		}
	}

	return Type{
		Domain:   parts[0],
		Category: parts[1],
		Version:  parts[2],
	}, nil
}
