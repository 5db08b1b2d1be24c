// Package visionmiddleware joins per-frame partial perception results into
// combined events. Two upstream model services analyse the same camera
// frames independently, one emitting pose tags and one emitting
// segmentation masks, and neither knows about the other. This service is
// the meeting point: it holds whichever side arrives first and publishes a
// combined event the moment the counterpart shows up.
//
// # Architecture
//
// Everything rides on NATS. Partials arrive on JetStream subjects, pending
// sides wait in a JetStream KV bucket, and combined events leave on
// JetStream subjects:
//
//	vision.partial.pose.<stream>  ─┐
//	                               ├─→ consumer ─→ fusion ─→ vision.fused.<stream>
//	vision.partial.mask.<stream>  ─┘                │
//	                                        KV slot bucket
//	                                     (first side waits here)
//
// The join is keyed by (stream, frame, instance). The fusion package runs
// the claim protocol that makes exactly one of two concurrent submitters
// the combiner; the slotstore package gives it the revision-checked KV
// primitives that protocol needs; the bus package moves partials in and
// combined events out with at-least-once delivery.
//
// # Layout
//
//   - fusion: the join coordinator and its bus handler
//   - slotstore: pending-slot storage over JetStream KV
//   - bus: JetStream consumer and producer legs
//   - message: envelope and payload types shared with the model services
//   - service: subsystem lifecycle and the operational HTTP listener
//   - tap: WebSocket fan-out of combined events for operators
//   - natsclient: the shared NATS connection with reconnect handling
//   - config, errors, health, metric: cross-cutting plumbing
//   - pkg/...: small reusable pieces (retry, cache, buffer, worker, TLS)
//
// The cmd/vision-middleware binary wires these together; see its --help
// for flags and VISIONMW_* environment overrides.
package visionmiddleware
