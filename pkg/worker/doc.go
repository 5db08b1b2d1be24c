// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The worker package implements a bounded worker pool with:
//   - Generic type support for type-safe work processing
//   - Bounded queues with two submit modes (drop or wait)
//   - Context-aware cancellation and graceful shutdown
//   - Dual-tracking observability (always-on statistics + optional Prometheus metrics)
//   - Panic containment per work item
//
// In this service the pool sits between the stream consumer and the fusion
// handler: each delivery pulled from the stream becomes one work item, and a
// fixed set of workers runs the handler concurrently without unbounded
// goroutine growth.
//
// # Core Concepts
//
// Worker Pool Pattern:
//
// The pool manages a fixed number of goroutines (workers) that process work
// items from a bounded channel (queue). This provides:
//   - Resource control: fixed memory and goroutine overhead
//   - Backpressure: queue fills when workers can't keep up
//   - Load distribution: work items distributed across workers
//   - Observability: statistics on throughput, latency, and queue depth
//
// Generic Type Safety:
//
// Using Go generics, the pool can process any work type T without type
// assertions:
//
//	pool := worker.NewPool[bus.Delivery](
//	    8,    // workers
//	    512,  // queue size
//	    func(ctx context.Context, d bus.Delivery) error {
//	        return handler.Handle(ctx, d)
//	    },
//	)
//
// Dual-Tracking Observability:
//
//   - Statistics: always tracked using atomic operations
//   - Metrics: optional Prometheus metrics via WithMetricsRegistry
//
// # Architecture Decisions
//
// Two Submit Modes:
//
// Submit() uses a non-blocking send and returns ErrQueueFull when the queue
// is at capacity. The consumer uses this mode: a full queue means the
// delivery is not acknowledged, and the stream redelivers it later.
//
// SubmitWait() blocks until queue space frees or the context is done. Used
// where dropping is not acceptable and redelivery is not available.
//
// Panic Containment:
//
// A panic inside the processor function is recovered per work item and
// recorded as a failure. One malformed payload cannot take down a worker
// goroutine or the process.
//
// Graceful Shutdown:
//
// Stop(timeout) closes the work channel, lets workers drain the remaining
// queue, and waits up to the timeout. ErrStopTimeout means workers were
// still busy; the caller decides whether to abandon them.
//
// Per-work-item timeouts are not built in. Implement them in the processor
// function using the context.
//
// # Usage
//
//	pool := worker.NewPool[Delivery](
//	    8, 512,
//	    func(ctx context.Context, d Delivery) error {
//	        return process(ctx, d)
//	    },
//	    worker.WithMetricsRegistry[Delivery](registry, "visionmw_consumer"),
//	)
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(delivery); err != nil {
//	    if errors.Is(err, worker.ErrQueueFull) {
//	        // Leave unacknowledged; the stream will redeliver
//	    }
//	}
//
// # Error Handling
//
// All lifecycle and queue errors are unwrapped sentinels (ErrPoolNotStarted,
// ErrPoolStopped, ErrPoolAlreadyStarted, ErrQueueFull, ErrStopTimeout) so
// callers can branch with errors.Is or direct comparison. Processor errors
// are counted in statistics and metrics but not returned to the submitter;
// the processor owns its own error handling.
package worker
