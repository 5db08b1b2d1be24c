package bus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kagwave/vision-middleware/metric"
)

// producerMetrics counts outbound publishes. Nil when no registry is
// configured; the record methods tolerate that.
type producerMetrics struct {
	published prometheus.Counter
	failed    prometheus.Counter
}

func newProducerMetrics(registry *metric.MetricsRegistry) (*producerMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &producerMetrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Events published to the fused stream",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "bus",
			Name:      "publish_failures_total",
			Help:      "Publishes that failed after retry",
		}),
	}

	if err := registry.RegisterCounter("bus", "published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("bus", "publish_failures", m.failed); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *producerMetrics) recordPublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *producerMetrics) recordFailed() {
	if m == nil {
		return
	}
	m.failed.Inc()
}

// consumerMetrics counts inbound dispositions. The worker pool carries its
// own queue metrics; these cover what happens to each delivery.
type consumerMetrics struct {
	dispositions *prometheus.CounterVec
	saturated    prometheus.Counter
}

func newConsumerMetrics(registry *metric.MetricsRegistry) (*consumerMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &consumerMetrics{
		dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "bus",
			Name:      "dispositions_total",
			Help:      "Deliveries by disposition (ack, nak, term)",
		}, []string{"disposition"}),
		saturated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "bus",
			Name:      "pool_saturation_total",
			Help:      "Deliveries nakked because the worker pool queue was full",
		}),
	}

	if err := registry.RegisterCounterVec("bus", "dispositions", m.dispositions); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("bus", "pool_saturation", m.saturated); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *consumerMetrics) recordDisposition(disposition string) {
	if m == nil {
		return
	}
	m.dispositions.WithLabelValues(disposition).Inc()
}

func (m *consumerMetrics) recordSaturated() {
	if m == nil {
		return
	}
	m.saturated.Inc()
}
