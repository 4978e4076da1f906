package changefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for change feed delivery.
type Metrics struct {
	Sent         prometheus.Counter
	Dropped      prometheus.Counter
	SendFailures prometheus.Counter
	Pending      prometheus.Gauge
	BreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Sent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "permitpulse_changefeed_sent_total",
			Help: "Total number of change feed messages delivered",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "permitpulse_changefeed_dropped_total",
			Help: "Total number of change feed messages dropped because the buffer was full",
		}),
		SendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "permitpulse_changefeed_send_failures_total",
			Help: "Total number of failed change feed batch sends",
		}),
		Pending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "permitpulse_changefeed_pending",
			Help: "Messages waiting to be sent",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "permitpulse_changefeed_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) AddSent(n int) {
	if m == nil {
		return
	}
	m.Sent.Add(float64(n))
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) IncSendFailures() {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}
