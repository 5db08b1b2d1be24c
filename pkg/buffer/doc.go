// Package buffer provides a generic, thread-safe circular buffer with
// configurable overflow policies and built-in observability.
//
// # Overview
//
// A circular buffer holds the most recent N items in fixed memory. The
// event tap uses one as its replay ring: every combined event published
// on the bus is also written here, and a websocket client that connects
// mid-stream first receives Snapshot() of the ring, then live events.
// With the default DropOldest policy the ring always holds the freshest
// history and writers never block on slow readers.
//
// # Overflow Policies
//
//   - DropOldest (default): overwrite the oldest item; the ring tracks
//     the most recent capacity items
//   - DropNewest: reject new writes while full
//   - Block: writers wait for space; pair with WriteWithContext or
//     WriteWithTimeout to bound the wait
//
// # Usage
//
//	ring, err := buffer.NewCircularBuffer[message.Envelope](256,
//		buffer.WithMetrics[message.Envelope](registry, "tap_replay"),
//	)
//	if err != nil {
//		return err
//	}
//	defer ring.Close()
//
//	ring.Write(envelope)          // live path
//	history := ring.Snapshot()    // replay path, non-destructive
//
// # Observability
//
// Statistics are always collected (writes, reads, peeks, overflows,
// drops, size high-water mark) and exposed via Stats(). WithMetrics()
// additionally registers visionmw_buffer_* counters and gauges with a
// component label.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Drop callbacks run outside
// the buffer lock, so a callback may observe the buffer in a newer state
// than the drop it reports.
package buffer
