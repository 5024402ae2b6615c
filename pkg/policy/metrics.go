package policy

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// Metrics holds Prometheus metrics for policy enforcement.
type Metrics struct {
	decisionsTotal  *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers policy metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_policy_decisions_total",
				Help: "Total policy decisions by policy name and status",
			},
			[]string{"policy", "status"},
		),
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_policy_violations_total",
				Help: "Total detected violations by type",
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.decisionsTotal, m.violationsTotal)
	}
	return m
}

// RecordDecision updates counters for a completed enforcement call.
func (m *Metrics) RecordDecision(decision domain.PolicyDecision) {
	m.decisionsTotal.WithLabelValues(decision.Policy, string(decision.Status)).Inc()
	for _, v := range decision.Violations {
		m.violationsTotal.WithLabelValues(v.Type).Inc()
	}
}
