// Package metric provides Prometheus-based metrics collection for the
// vision middleware.
//
// The package offers a centralized registry managing both core platform
// metrics (subsystem state, message flow, NATS health) and custom
// per-service metrics registered at startup. The registry exposes an
// http.Handler in Prometheus exposition format; the operational listener
// mounts it at /metrics rather than the registry running a server of its
// own.
//
// # Architecture
//
// Two layers:
//
//  1. Core metrics: platform-level metrics registered automatically
//     (Metrics type). These cover concerns every deployment has:
//     subsystem lifecycle state, messages received/processed/published,
//     processing latency, error counts, NATS connectivity.
//  2. Service registry: extensible registration for service-specific
//     metrics (MetricsRegistrar interface). The fusion coordinator, the
//     consumer worker pool, and the completion cache register their own
//     counters here.
//
// Core metrics use the namespace "visionmw":
//
//	visionmw_service_status{service="consumer"}
//	visionmw_messages_processed_total{service="consumer",type="pose.tag",status="combined"}
//	visionmw_nats_connected
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//
//	core := registry.CoreMetrics()
//	core.RecordServiceStatus("consumer", 2) // running
//	core.RecordMessageReceived("consumer", "pose.tag")
//
//	// Serve through the listener:
//	mux.Handle("/metrics", registry.Handler())
//
// # Service-Specific Metrics
//
// Services register custom metrics through the MetricsRegistrar
// interface, which keeps them testable with a real registry and avoids
// global state:
//
//	joins := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "visionmw",
//	    Subsystem: "fusion",
//	    Name:      "joins_total",
//	    Help:      "Completed pose/mask joins",
//	})
//	if err := registrar.RegisterCounter("fusion", "joins_total", joins); err != nil {
//	    return err
//	}
//
// Registration is rejected when the service/metric pair is already
// registered, or when Prometheus itself reports a collision. Both cases
// are classified Invalid: a duplicate registration is a wiring bug, not
// a condition to retry.
//
// # Subsystem State Values
//
// RecordServiceStatus uses the orchestrator's state numbering:
//
//	0 = not started
//	1 = starting
//	2 = running
//	3 = stopping
//	4 = stopped
//	5 = failed
//
// # Thread Safety
//
// Registration methods take a mutex; metric recording itself is
// lock-free per the Prometheus client's guarantees. CoreMetrics() and
// PrometheusRegistry() are safe for concurrent use.
package metric
