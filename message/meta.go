package message

import "time"

// Meta provides metadata about a message's lifecycle and origin.
//
// Using an interface rather than a concrete type allows for:
//   - Custom metadata implementations for specific pipelines
//   - Extended metadata with additional fields when needed
//   - Easier testing with mock implementations
type Meta interface {
	// CreatedAt returns when the original observation occurred.
	// For a pose tag or segmentation mask, this is when the upstream
	// stage produced the result for the frame.
	CreatedAt() time.Time

	// ReceivedAt returns when the message entered this service.
	// The coordinator uses the spread between partial arrivals to
	// report join gaps.
	ReceivedAt() time.Time

	// Source returns the identifier of the message originator.
	// Examples: "pose-estimator", "segmentation-worker-3"
	Source() string
}
