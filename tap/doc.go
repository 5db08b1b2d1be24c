// Package tap streams combined events to WebSocket subscribers for live
// inspection.
//
// # Overview
//
// The tap subscribes to the fused subjects over core NATS and fans each
// event out to connected WebSocket clients. It is an ops surface, not a
// delivery path: the durable consumer contract lives on the JetStream
// bus, and the tap never participates in join semantics.
//
// # Delivery
//
// At-most-once. Each client write is bounded by WriteWait; a client that
// cannot drain in time, fails a write, or stops answering keepalive
// pings is dropped. A ring of the most recent events (DropOldest) is
// replayed to each new client before live traffic.
//
// # Wiring
//
// The tap owns no HTTP server. Handler() returns the upgrade handler and
// the service listener mounts it, so the tap shares the listener's port
// and TLS configuration:
//
//	t, err := tap.NewTap(natsClient, tap.Config{Replay: 32})
//	listener.MountTap("/events", t.Handler())
//
// Upgrades are refused with 503 until Start.
package tap
