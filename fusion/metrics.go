package fusion

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kagwave/vision-middleware/metric"
)

// Outcome label values for the submit counter beyond the OutcomeKind names.
const (
	outcomeInvalid    = "invalid"
	outcomeStoreError = "store_error"
)

// coordinatorMetrics holds Prometheus metrics for the join protocol.
type coordinatorMetrics struct {
	outcomes     *prometheus.CounterVec // submit results by outcome
	joinGap      prometheus.Histogram   // ms between the two sides of a pair
	claimRetries prometheus.Counter     // protocol rounds lost to races
	submitTime   prometheus.Histogram   // end-to-end submit latency
}

// newCoordinatorMetrics creates and registers fusion metrics with the
// registry. A nil registry disables metrics.
func newCoordinatorMetrics(registry *metric.MetricsRegistry) (*coordinatorMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &coordinatorMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "fusion",
			Name:      "submit_outcomes_total",
			Help:      "Submit results by outcome (stored, combined, duplicate, invalid, store_error)",
		}, []string{"outcome"}),

		joinGap: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "visionmw",
			Subsystem: "fusion",
			Name:      "join_gap_ms",
			Help:      "Wall-clock spread in milliseconds between the two sides of a completed pair",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),

		claimRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmw",
			Subsystem: "fusion",
			Name:      "claim_retries_total",
			Help:      "Protocol rounds repeated because another submitter won a create or claim race",
		}),

		submitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "visionmw",
			Subsystem: "fusion",
			Name:      "submit_duration_seconds",
			Help:      "End-to-end submit latency including store round trips",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if err := registry.RegisterCounterVec("fusion", "submit_outcomes", m.outcomes); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("fusion", "join_gap", m.joinGap); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("fusion", "claim_retries", m.claimRetries); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("fusion", "submit_duration", m.submitTime); err != nil {
		return nil, err
	}

	return m, nil
}

// recordOutcome bumps the outcome counter. Safe on a nil receiver.
func (m *coordinatorMetrics) recordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// recordJoinGap observes a completed pair's arrival spread.
func (m *coordinatorMetrics) recordJoinGap(gapMs int64) {
	if m == nil {
		return
	}
	m.joinGap.Observe(float64(gapMs))
}

// recordClaimRetry counts a lost protocol round.
func (m *coordinatorMetrics) recordClaimRetry() {
	if m == nil {
		return
	}
	m.claimRetries.Inc()
}

// recordSubmitDuration observes one submit's latency in seconds.
func (m *coordinatorMetrics) recordSubmitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.submitTime.Observe(seconds)
}
