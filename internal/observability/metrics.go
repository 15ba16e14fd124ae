package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for lifecycle transitions.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // a business rule refused the action
	OutcomeError    = "error"    // storage or unexpected failure
)

var (
	// connTransitions counts lifecycle actions by action and outcome.
	connTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_transitions_total",
			Help: "Connection lifecycle actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// connRefusals counts refused actions by failure kind, e.g. conflict or restricted.
	connRefusals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_refusals_total",
			Help: "Refused connection lifecycle actions by action and failure kind.",
		},
		[]string{"action", "kind"},
	)

	// restrictionsIssued counts cooldowns created or extended by rejection.
	restrictionsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_restrictions_issued_total",
			Help: "Cooldown restrictions written on rejection.",
		},
	)
)

func init() {
	prometheus.MustRegister(connTransitions, connRefusals, restrictionsIssued)
}

// ObserveTransition records one lifecycle action.
func ObserveTransition(action, outcome string) {
	connTransitions.WithLabelValues(action, outcome).Inc()
}

// ObserveRefusal records an action refused with the given failure kind.
func ObserveRefusal(action, kind string) {
	connTransitions.WithLabelValues(action, OutcomeRejected).Inc()
	connRefusals.WithLabelValues(action, kind).Inc()
}

// ObserveRestriction records a restriction upsert.
func ObserveRestriction() {
	restrictionsIssued.Inc()
}
