package fusion

import (
	"fmt"

	"github.com/kagwave/vision-middleware/errors"
)

// Variant names one side of the join.
type Variant string

const (
	// VariantPose is the pose-estimation side.
	VariantPose Variant = "pose"

	// VariantMask is the segmentation side.
	VariantMask Variant = "mask"
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	return v == VariantPose || v == VariantMask
}

// Counterpart returns the other side of the join.
func (v Variant) Counterpart() Variant {
	if v == VariantPose {
		return VariantMask
	}
	return VariantPose
}

// String returns the variant name.
func (v Variant) String() string {
	return string(v)
}

// ParseVariant converts a subject token or config value to a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.IsValid() {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Variant", "ParseVariant",
			fmt.Sprintf("unknown variant %q", s))
	}
	return v, nil
}
