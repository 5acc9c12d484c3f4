// Package metrics exposes Prometheus collectors for the ledger.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps collectors tracking settlement and wallet activity.
type Metrics struct {
	settlements *prometheus.CounterVec
	postings    *prometheus.CounterVec
	payouts     prometheus.Counter
	approvals   *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "ledger",
			Name:      "settlements_total",
			Help:      "Delivery settlements segmented by outcome.",
		}, []string{"outcome"}),
		postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "ledger",
			Name:      "postings_total",
			Help:      "Wallet transactions committed, segmented by kind.",
		}, []string{"kind"}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "ledger",
			Name:      "payouts_total",
			Help:      "Manual payouts recorded by admins.",
		}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "onboarding",
			Name:      "approvals_total",
			Help:      "Application approvals segmented by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "drivers",
			Name:      "status_transitions_total",
			Help:      "Operational status changes segmented by source and target status.",
		}, []string{"from", "to"}),
	}
	if reg != nil {
		reg.MustRegister(m.settlements, m.postings, m.payouts, m.approvals, m.transitions)
	}
	return m
}

// Settlement records the outcome of one delivery event.
func (m *Metrics) Settlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

// Posting records a committed wallet transaction.
func (m *Metrics) Posting(kind string) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(kind).Inc()
}

// Payout records a manual payout.
func (m *Metrics) Payout() {
	if m == nil {
		return
	}
	m.payouts.Inc()
}

// Approval records the outcome of an approval attempt.
func (m *Metrics) Approval(outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(outcome).Inc()
}

// Transition records an operational status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}
