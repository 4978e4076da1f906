package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ingestion loop.
type Metrics struct {
	// Cycle outcomes by city and action taken
	CycleOutcome *prometheus.CounterVec

	// Full cycle latency by city
	CycleLatency *prometheus.HistogramVec

	// Published snapshot version per city
	PublishedVersion *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		CycleOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "permitpulse_ingestion_cycles_total",
			Help: "Ingestion cycles by city and action taken",
		}, []string{"city", "action"}),

		CycleLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permitpulse_ingestion_cycle_duration_seconds",
			Help:    "Duration of an ingestion cycle including fetch and extraction",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"city"}),

		PublishedVersion: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "permitpulse_ingestion_published_version",
			Help: "Latest published snapshot version by city",
		}, []string{"city"}),
	}
}

func (m *Metrics) IncrementOutcome(city, action string) {
	if m != nil {
		m.CycleOutcome.WithLabelValues(city, action).Inc()
	}
}

func (m *Metrics) ObserveCycle(city string, d time.Duration) {
	if m != nil {
		m.CycleLatency.WithLabelValues(city).Observe(d.Seconds())
	}
}

func (m *Metrics) SetPublishedVersion(city string, version int) {
	if m != nil {
		m.PublishedVersion.WithLabelValues(city).Set(float64(version))
	}
}
