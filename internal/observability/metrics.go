// Package observability provides Prometheus metrics for the session gate and login flow.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// GateDecisionsTotal counts gate outcomes by action (pass, redirect, reject).
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantgate_gate_decisions_total",
			Help: "Session gate decisions",
		},
		[]string{"action"},
	)

	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantgate_login_attempts_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)

	// TokenVerificationsTotal counts session token checks by result.
	TokenVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantgate_token_verifications_total",
			Help: "Session token verifications",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		GateDecisionsTotal,
		LoginAttemptsTotal,
		TokenVerificationsTotal,
	)
}
