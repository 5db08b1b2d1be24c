// Package bus carries partial results in and combined events out over
// JetStream.
//
// # Overview
//
// The bus has two independent legs sharing one NATS client:
//
//   - Producer: ensures the fused-events stream and publishes combined
//     events with at-least-once semantics. Send retries briefly on
//     transient NATS failures.
//   - Consumer: binds a durable consumer with explicit acks over the
//     partials stream and dispatches every delivery into a worker pool.
//
// # Subjects
//
// Partials arrive per variant and stream, combined events leave per
// stream:
//
//	vision.partial.pose.<stream>
//	vision.partial.mask.<stream>
//	vision.fused.<stream>
//
// The consumer filters vision.partial.>; handlers recover the variant from
// the subject with ParsePartialSubject.
//
// # Dispositions
//
// The consumer maps the handler's classified error to a JetStream
// disposition:
//
//   - nil: Ack. Covers stored, combined, and duplicate outcomes alike.
//   - invalid (errors.IsInvalid): Term. Poison messages never redeliver.
//   - anything else: Nak. The server redelivers after AckWait, bounded by
//     MaxDeliver.
//
// A saturated worker pool also naks, turning backpressure into
// redelivery instead of an unbounded local buffer. There are no internal
// retry queues and no dead-letter handling beyond MaxDeliver.
//
// # Publish Capability
//
// Handlers receive a PublishFunc, never the Producer. Producer.Bind()
// scopes the capability to publishing alone; NopPublish() stands in when
// no producer is configured.
package bus
