package bus

import (
	"fmt"
	"strings"

	"github.com/kagwave/vision-middleware/errors"
)

// Subject layout. Partials arrive on a per-variant, per-stream subject and
// combined events leave on a per-stream subject:
//
//	vision.partial.pose.<stream>
//	vision.partial.mask.<stream>
//	vision.fused.<stream>
const (
	partialPrefix = "vision.partial"
	fusedPrefix   = "vision.fused"

	// PartialWildcard is the consumer's filter subject. It covers both
	// variants on every stream.
	PartialWildcard = partialPrefix + ".>"

	// FusedWildcard covers combined events on every stream. The event tap
	// subscribes here.
	FusedWildcard = fusedPrefix + ".>"
)

// PartialSubject builds the subject a producer uses for one variant of one
// stream. The variant token is not validated here; subscribers derive it
// back out with ParsePartialSubject.
func PartialSubject(variant, stream string) string {
	return fmt.Sprintf("%s.%s.%s", partialPrefix, variant, stream)
}

// FusedSubject builds the subject combined events are published on.
func FusedSubject(stream string) string {
	return fmt.Sprintf("%s.%s", fusedPrefix, stream)
}

// ParsePartialSubject splits a partials subject into its variant token and
// stream id. The token is returned as-is; callers validate it against the
// variants they understand.
func ParsePartialSubject(subject string) (variant, stream string, err error) {
	tokens := strings.Split(subject, ".")
	if len(tokens) != 4 || tokens[0]+"."+tokens[1] != partialPrefix {
		return "", "", errors.WrapInvalid(errors.ErrInvalidData, "bus", "ParsePartialSubject",
			fmt.Sprintf("subject %q does not match %s.<variant>.<stream>", subject, partialPrefix))
	}
	if tokens[2] == "" || tokens[3] == "" {
		return "", "", errors.WrapInvalid(errors.ErrInvalidData, "bus", "ParsePartialSubject",
			fmt.Sprintf("subject %q has empty tokens", subject))
	}
	return tokens[2], tokens[3], nil
}
