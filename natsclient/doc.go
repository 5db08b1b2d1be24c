// Package natsclient provides a NATS client with circuit breaker protection,
// automatic reconnection, and JetStream/KV support.
//
// The package wraps the standard NATS Go client with reliability features:
// a circuit breaker that fails fast after repeated failures, exponential
// backoff between reconnection rounds, and context propagation on all
// blocking operations. It is the transport foundation for the fusion
// pipeline: the event bus publishes and consumes partial detections through
// it, and the slot store runs its compare-and-swap protocol on the KV
// operations it exposes.
//
// # Connection Lifecycle
//
// The client moves through Disconnected, Connecting, Connected,
// Reconnecting, and CircuitOpen states. After five consecutive failures the
// circuit opens and operations return ErrCircuitOpen immediately; a probe
// scheduled after the current backoff moves the circuit back to
// Disconnected so the next operation can retry. Backoff doubles per open
// round and caps at one minute.
//
// Basic usage:
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "vision.fused.v1", payload)
//
//	err = client.Subscribe(ctx, "vision.fused.>", func(msgCtx context.Context, data []byte) {
//	    // Handle message; msgCtx carries a 30s processing timeout.
//	})
//
// # Configuration
//
// Behavior is tuned through functional options:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("vision-middleware"),
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithReconnectWait(2*time.Second),
//	    natsclient.WithCircuitBreakerThreshold(10),
//	    natsclient.WithLogger(slog.Default()),
//	    natsclient.WithTLSConfig(tlsCfg),
//	)
//
// WithTLSConfig accepts a pre-built tls.Config, typically produced by the
// tlsutil package from service configuration. WithTLS is the file-path
// alternative for callers without a config layer.
//
// # JetStream
//
// Stream management and durable messaging run through the same client:
//
//	stream, err := client.CreateStream(ctx, jetstream.StreamConfig{
//	    Name:     "VISION_PARTIALS",
//	    Subjects: []string{"vision.partial.>"},
//	})
//
//	err = client.PublishToStream(ctx, "vision.partial.pose.v1", payload)
//
//	err = client.ConsumeStream(ctx, "VISION_PARTIALS", "vision.partial.>", func(data []byte) {
//	    // Auto-acked handler for simple consumers.
//	})
//
// Components that need explicit ack control (the fusion consumer among
// them) obtain the raw JetStream context via client.JetStream() and manage
// their own durable consumers.
//
// # Key-Value Store
//
// KVStore layers CAS-aware operations over a JetStream KV bucket:
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
//	    Bucket:  "fusion-slots",
//	    TTL:     time.Minute,
//	    History: 1,
//	})
//
//	kvStore := client.NewKVStore(bucket)
//
//	// Create fails with ErrKVKeyExists when the key is already present.
//	rev, err := kvStore.Create(ctx, "slots.v1.10.a", payload)
//
//	// DeleteRevision removes the key only at the expected revision. Of N
//	// racers exactly one succeeds; the rest get ErrKVRevisionMismatch.
//	err = kvStore.DeleteRevision(ctx, "slots.v1.10.a", rev)
//
// Create plus DeleteRevision is the claim protocol the slot store builds
// on: the first partial of a pair creates the slot, the second claims it by
// deleting at the observed revision. UpdateWithRetry and UpdateJSON provide
// conventional read-modify-write CAS loops with jittered backoff for
// configuration-style keys.
//
// # Metrics
//
// WithMetrics registers JetStream gauges and counters with a
// metric.MetricsRegistry and starts a background poller after Connect. Only
// streams and consumers touched through the client are tracked.
//
// # Testing
//
// TestClient runs a real NATS server in a container:
//
//	func TestSomething(t *testing.T) {
//	    tc := natsclient.NewTestClient(t, natsclient.WithSlotBucket("fusion-slots", time.Minute))
//	    client := tc.Client
//	    // ...
//	}
//
// NewSharedTestClient is the TestMain variant that returns errors instead
// of requiring a testing.T.
package natsclient
