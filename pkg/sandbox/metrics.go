package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for sandbox executions.
type Metrics struct {
	executionsTotal *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// NewMetrics creates and registers sandbox metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_sandbox_executions_total",
				Help: "Total sandbox executions by language and outcome",
			},
			[]string{"language", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_sandbox_duration_seconds",
				Help:    "Sandbox execution wall-clock duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"language"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.executionsTotal, m.duration)
	}
	return m
}

// RecordExecution updates counters for a finished execution.
func (m *Metrics) RecordExecution(language, outcome string, d time.Duration) {
	m.executionsTotal.WithLabelValues(language, outcome).Inc()
	m.duration.WithLabelValues(language).Observe(d.Seconds())
}
