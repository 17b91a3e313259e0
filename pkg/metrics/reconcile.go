package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics counts poll attempts and terminal outcomes.
type ReconcileMetrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation counters on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_poll_attempts_total",
		Help: "Provider status queries issued by the reconciliation poller.",
	}, []string{"source"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciliation outcomes by terminal state.",
	}, []string{"source", "outcome"})
	reg.MustRegister(attempts, outcomes)
	return &ReconcileMetrics{
		attempts: attempts,
		outcomes: outcomes,
	}
}

// IncAttempt counts one provider status query.
func (r *ReconcileMetrics) IncAttempt(source string) {
	if r == nil || r.attempts == nil {
		return
	}
	r.attempts.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncOutcome counts a finished reconciliation run.
func (r *ReconcileMetrics) IncOutcome(source, outcome string) {
	if r == nil || r.outcomes == nil {
		return
	}
	r.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}
