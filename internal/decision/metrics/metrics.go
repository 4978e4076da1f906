package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Check outcomes by city, grade and mode
	CheckOutcome *prometheus.CounterVec

	// Checks refused because the organization is over quota, by plan
	QuotaRejections *prometheus.CounterVec

	// Overall check latency including persistence
	CheckLatency prometheus.Histogram
}

// New creates a new Metrics instance with all decision module metrics registered.
func New() *Metrics {
	return &Metrics{
		CheckOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "permitpulse_decision_checks_total",
			Help: "Total address checks by city, grade and decision mode",
		}, []string{"city", "grade", "mode"}),

		QuotaRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "permitpulse_decision_quota_rejections_total",
			Help: "Address checks rejected by monthly plan quota",
		}, []string{"plan"}),

		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "permitpulse_decision_check_duration_seconds",
			Help:    "Duration of an address check including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementOutcome records a check outcome.
func (m *Metrics) IncrementOutcome(city, grade, mode string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(city, grade, mode).Inc()
	}
}

func (m *Metrics) IncrementQuotaRejection(plan string) {
	if m != nil {
		m.QuotaRejections.WithLabelValues(plan).Inc()
	}
}

// ObserveCheckLatency records the total check duration.
func (m *Metrics) ObserveCheckLatency(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}
