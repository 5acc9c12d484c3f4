package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Settlement("settled")
	m.Settlement("settled")
	m.Settlement("duplicate")
	m.Posting("credit_tip")
	m.Payout()
	m.Approval("approved")
	m.Transition("active", "restricted_debt")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.settlements.WithLabelValues("settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settlements.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.postings.WithLabelValues("credit_tip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("active", "restricted_debt")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Settlement("settled")
		m.Posting("payout")
		m.Payout()
		m.Approval("approved")
		m.Transition("a", "b")
	})
}
