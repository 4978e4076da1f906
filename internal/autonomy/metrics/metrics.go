package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ops loop.
type Metrics struct {
	// Latest computed SLO value by metric name
	SLOValue *prometheus.GaugeVec

	// Rollbacks executed by the recovery cycle
	RollbacksExecuted prometheus.Counter

	// Maintenance cycles by overall status
	MaintenanceRuns *prometheus.CounterVec

	MaintenanceDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		SLOValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "permitpulse_slo_value",
			Help: "Most recently computed SLO value by metric",
		}, []string{"metric"}),

		RollbacksExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "permitpulse_autonomy_rollbacks_total",
			Help: "Automatic rollbacks executed for degraded events",
		}),

		MaintenanceRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "permitpulse_maintenance_runs_total",
			Help: "Daily maintenance cycles by overall status",
		}, []string{"status"}),

		MaintenanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "permitpulse_maintenance_duration_seconds",
			Help:    "Duration of a daily maintenance cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

func (m *Metrics) SetSLOValue(metric string, value float64) {
	if m != nil {
		m.SLOValue.WithLabelValues(metric).Set(value)
	}
}

func (m *Metrics) IncrementRollbacks(n int) {
	if m != nil && n > 0 {
		m.RollbacksExecuted.Add(float64(n))
	}
}

func (m *Metrics) ObserveMaintenance(status string, d time.Duration) {
	if m != nil {
		m.MaintenanceRuns.WithLabelValues(status).Inc()
		m.MaintenanceDuration.Observe(d.Seconds())
	}
}
