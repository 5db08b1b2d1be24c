// Package slotstore provides the shared slot storage that synchronizes the
// two-sided frame join.
//
// # Overview
//
// A slot holds the first partial result (pose tag or segmentation mask) for
// a frame instance while its counterpart is still in flight. The fusion
// coordinator decides every race through the store's atomic operations, so
// join correctness holds across goroutines and across service replicas
// sharing one bucket. No in-process state is load-bearing.
//
// # Architecture
//
// The Store interface exposes exactly the operations the join protocol
// needs:
//
//   - CreateIfAbsent: store the first-arriving side (exactly one of N
//     concurrent creators wins)
//   - Get / DeleteRevision: read the waiting side, then claim it by
//     revision (exactly one of N claimants wins)
//   - GetAndDelete: the two combined as one atomic take
//   - Exists: advisory presence probe for tooling and endpoints
//
// Namespaces map to key prefixes within a single bucket ("<ns>.<key>"), so
// the bucket-level TTL expires pending slots in every namespace uniformly.
//
// # Production Implementation
//
// NATS backs Store with a JetStream KV bucket:
//
//   - CreateIfAbsent uses KV Create; a conflict means another writer won
//     and is reported as false, not an error.
//   - DeleteRevision uses KV Delete with a LastRevision guard; a mismatch
//     means the slot changed or vanished first, again false.
//   - GetAndDelete runs a bounded read-claim loop under pkg/retry; it only
//     repeats when another writer touches the key between read and delete.
//   - Connect creates the bucket with History: 1 and the configured TTL,
//     so an unjoined slot is dropped when the TTL window closes.
//
// # Error Classification
//
// Following pkg/errors patterns:
//   - WrapInvalid: empty namespace or key
//   - WrapTransient: NATS unavailability, timeouts, exhausted claim loop
//
// Lost races are never errors; they come back as false results. Transient
// errors tell the caller to withhold the message acknowledgment so the bus
// redelivers.
//
// # Testing
//
// Integration tests run against real NATS via testcontainers, including
// multi-writer create races and claim races. Unit tests elsewhere in the
// repo use testutil.MemoryStore, which mirrors these semantics in memory.
//
// # Example Usage
//
//	store, err := slotstore.NewNATS(client, "fusion-slots",
//	    slotstore.WithTTL(30*time.Second))
//	if err != nil {
//	    return err
//	}
//	if err := store.Connect(ctx); err != nil {
//	    return err
//	}
//	defer store.Disconnect(ctx)
//
//	// First side arrives
//	created, err := store.CreateIfAbsent(ctx, "pose", "v1.10.a", payload)
//
//	// Second side claims it
//	value, claimed, err := store.GetAndDelete(ctx, "pose", "v1.10.a")
package slotstore
