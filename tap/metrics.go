package tap

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kagwave/vision-middleware/metric"
)

// tapMetrics tracks the broadcast fan-out. Nil when no registry is
// configured; the record methods tolerate that.
type tapMetrics struct {
	events      prometheus.Counter
	sent        prometheus.Counter
	replayed    prometheus.Counter
	connections prometheus.Counter
	connected   prometheus.Gauge
	disconnects *prometheus.CounterVec
}

func newTapMetrics(registry *metric.MetricsRegistry) (*tapMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &tapMetrics{
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "tap",
			Name:      "events_total",
			Help:      "Combined events received from the fused subjects",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "tap",
			Name:      "messages_sent_total",
			Help:      "Event frames written to WebSocket clients",
		}),
		replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "tap",
			Name:      "replayed_total",
			Help:      "Buffered events replayed to newly connected clients",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "tap",
			Name:      "client_connections_total",
			Help:      "Client connections accepted, including since-disconnected ones",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "visionmw",
			Subsystem: "tap",
			Name:      "clients_connected",
			Help:      "Currently connected WebSocket clients",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "tap",
			Name:      "client_disconnects_total",
			Help:      "Client disconnects by reason",
		}, []string{"reason"}),
	}

	if err := registry.RegisterCounter("tap", "events", m.events); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("tap", "messages_sent", m.sent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("tap", "replayed", m.replayed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("tap", "client_connections", m.connections); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("tap", "clients_connected", m.connected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("tap", "client_disconnects", m.disconnects); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *tapMetrics) recordEvent() {
	if m == nil {
		return
	}
	m.events.Inc()
}

func (m *tapMetrics) recordSent() {
	if m == nil {
		return
	}
	m.sent.Inc()
}

func (m *tapMetrics) recordReplayed(n int) {
	if m == nil {
		return
	}
	m.replayed.Add(float64(n))
}

func (m *tapMetrics) recordConnect(connected int) {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.connected.Set(float64(connected))
}

func (m *tapMetrics) recordDisconnect(reason string, connected int) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
	m.connected.Set(float64(connected))
}
