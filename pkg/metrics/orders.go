package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks the order state machine and its escrow side effects.
type OrderMetrics struct {
	transitions    *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	refundFailures prometheus.Counter
	refundAttempts prometheus.Histogram
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_transitions_total",
		Help: "Committed order status transitions.",
	}, []string{"from", "to"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_conflicts_total",
		Help: "Operations rejected because a concurrent writer won.",
	}, []string{"operation"})
	refundFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_refund_failures_total",
		Help: "Refunds that exhausted every retry and need an operator.",
	})
	refundAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orders_refund_attempts",
		Help:    "Gateway calls needed per refund.",
		Buckets: []float64{1, 2, 3, 4, 6, 8},
	})
	reg.MustRegister(transitions, conflicts, refundFailures, refundAttempts)
	return &OrderMetrics{
		transitions:    transitions,
		conflicts:      conflicts,
		refundFailures: refundFailures,
		refundAttempts: refundAttempts,
	}
}

func (m *OrderMetrics) Transition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) Conflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *OrderMetrics) RefundFailed() {
	if m == nil || m.refundFailures == nil {
		return
	}
	m.refundFailures.Inc()
}

func (m *OrderMetrics) ObserveRefundAttempts(attempts int) {
	if m == nil || m.refundAttempts == nil {
		return
	}
	m.refundAttempts.Observe(float64(attempts))
}
