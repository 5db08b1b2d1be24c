package fusion

import (
	"fmt"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/message"
)

// Key is the correlation key that pairs the two sides of a join: one video
// stream, one frame, one detected instance within the frame.
//
// Equality is three-field equality. The storage form is derived for the
// slot bucket and never parsed back; wire messages carry the three fields
// separately.
type Key struct {
	// Stream identifies the video stream, e.g. "v1".
	Stream string

	// Frame is the frame number within the stream.
	Frame uint64

	// Instance identifies the detected instance within the frame.
	Instance string
}

// StorageKey returns the slot-bucket form "<stream>.<frame>.<instance>".
// Only valid for validated keys; Stream and Instance are restricted to
// [A-Za-z0-9_-]+ so the dots are unambiguous separators.
func (k Key) StorageKey() string {
	return fmt.Sprintf("%s.%d.%s", k.Stream, k.Frame, k.Instance)
}

// String returns the storage form for logging.
func (k Key) String() string {
	return k.StorageKey()
}

// Validate checks the key fields. Violations classify as invalid, so the
// bus terminates the message instead of redelivering it.
func (k Key) Validate() error {
	if !message.ValidKeyField(k.Stream) {
		return errors.WrapInvalid(errors.ErrInvalidKey, "Key", "Validate",
			fmt.Sprintf("stream %q must match [A-Za-z0-9_-]+", k.Stream))
	}
	if !message.ValidKeyField(k.Instance) {
		return errors.WrapInvalid(errors.ErrInvalidKey, "Key", "Validate",
			fmt.Sprintf("instance %q must match [A-Za-z0-9_-]+", k.Instance))
	}
	return nil
}
