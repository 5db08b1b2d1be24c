// Package health provides thread-safe health tracking and aggregation for
// the service's subsystems.
//
// Each subsystem (slot store, consumer, producer, listener, tap) reports its
// state into a shared Monitor, and the HTTP listener serves the aggregated
// view on the health endpoints.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: subsystem operating normally
//   - Degraded: subsystem operating with reduced functionality
//   - Unhealthy: subsystem not functioning properly
//
// A degraded tap (slow clients being dropped) reads differently from an
// unhealthy store (KV bucket unreachable), so the two are kept distinct.
//
// # Basic Usage
//
// Creating and tracking subsystem health:
//
//	monitor := health.NewMonitor()
//
//	monitor.UpdateHealthy("store", "slot bucket reachable")
//	monitor.UpdateDegraded("tap", "2 slow clients dropped")
//	monitor.UpdateUnhealthy("consumer", "pull subscription lost")
//
//	if status, exists := monitor.Get("store"); exists && status.IsHealthy() {
//	    // store is fine
//	}
//
// Reporting errors directly:
//
//	err := store.Connect(ctx)
//	monitor.UpdateFromError("store", err) // nil err marks it healthy
//
// # Aggregation
//
// The service-wide status combines all subsystem statuses:
//
//	overall := monitor.AggregateHealth("vision-middleware")
//	if overall.IsUnhealthy() {
//	    // at least one subsystem is down
//	}
//
// Aggregation rules:
//   - any unhealthy subsystem → service unhealthy
//   - any degraded subsystem (with none unhealthy) → service degraded
//   - all healthy → service healthy
//
// Sub-statuses in the aggregate are sorted by subsystem name, so two
// successive snapshots of the same state serialize identically.
//
// # Metrics
//
// A subsystem can attach counters to its report:
//
//	status := health.NewHealthy("consumer", "consuming").WithMetrics(&health.Metrics{
//	    Uptime:            time.Since(started),
//	    MessagesProcessed: processed.Load(),
//	    LastActivity:      lastMsg,
//	})
//	monitor.Update("consumer", status)
//
// # Error Sanitization
//
// FromError strips URLs, file paths, IP addresses, ports, and credential
// fragments from error text before it becomes a health message. Health
// endpoints are often scraped unauthenticated, and raw driver errors tend to
// embed exactly the details (broker URLs, config paths) that should not
// leave the process:
//
//	health.FromError("store", err)
//	// "cannot connect to nats://10.0.0.5:4222" → "cannot connect to [URL]"
package health
