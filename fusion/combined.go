package fusion

import (
	"encoding/json"

	"github.com/kagwave/vision-middleware/message"
)

// CombinedEvent is a completed join: both sides of one frame instance plus
// the timing of the pairing.
type CombinedEvent struct {
	Key Key

	// Pose and Mask are the two partial payloads, carried through opaque.
	Pose json.RawMessage
	Mask json.RawMessage

	// FirstObservedAt is the observation time of the earlier side, unix ms.
	FirstObservedAt int64

	// JoinedAt is when the pair completed, unix ms.
	JoinedAt int64

	// JoinGapMs is the wall-clock spread between the two arrivals as seen
	// by this stage. Never negative.
	JoinGapMs int64
}

// Payload converts the event to its wire payload.
func (e *CombinedEvent) Payload() *message.CombinedEventPayload {
	return &message.CombinedEventPayload{
		StreamID:        e.Key.Stream,
		FrameNumber:     e.Key.Frame,
		InstanceID:      e.Key.Instance,
		Pose:            e.Pose,
		Mask:            e.Mask,
		FirstObservedAt: e.FirstObservedAt,
		JoinedAt:        e.JoinedAt,
		JoinGapMs:       e.JoinGapMs,
	}
}
