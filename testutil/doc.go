// Package testutil provides in-memory fakes and wait helpers for tests.
//
// # Overview
//
// The testutil package contains the mock implementations the unit tests
// share: an in-memory slot store with the same atomicity semantics as the
// production NATS store, a recording publisher, an in-memory pub/sub
// client, and a mock lifecycle subsystem.
//
// # Core Components
//
// MemoryStore - In-memory slotstore.Store:
//   - Single revision counter, create-if-absent, revision-guarded delete
//   - Lazy TTL expiry plus an explicit Expire for deterministic tests
//   - SetFailing simulates store unavailability (transient errors)
//   - AfterGet hook interleaves a competing writer between a read and
//     its claim, for deterministic race-path coverage
//
// RecordingPublisher - Captures publish calls:
//   - Publish matches the bus publish-capability signature
//   - FailFunc injects per-subject publish failures
//
// MockNATSClient - In-memory pub/sub:
//   - Matches natsclient.Client Subscribe/Publish signatures
//   - Supports the trailing ">" wildcard used by the event tap
//
// MockSubsystem - Lifecycle subsystem for orchestrator tests:
//   - StartFunc/StopFunc error injection
//   - Call counts and state flags for verification
//
// Test Helpers:
//   - WaitForMessage: polls a message source with timeout
//   - WaitForMessageCount: waits for N messages
//   - AssertNoMessages: verifies nothing was sent
//
// # Thread Safety
//
// All mock types are safe for concurrent use from multiple goroutines, so
// tests can race real submits against each other without data races.
//
// # Scope
//
// These fakes serve unit tests only. Store, bus, and service integration
// tests run against real NATS via natsclient.TestClient and
// testcontainers.
package testutil
