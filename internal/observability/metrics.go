// Package observability exposes the Prometheus counters the service
// publishes on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts inbound chat events by result
	// (processed, ignored, error).
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_events_processed_total",
		Help: "Inbound chat events handled by the engine, by result.",
	}, []string{"result"})

	// TimeoutsFired counts inactivity tickets that reached their fire
	// time, by what happened (transition, kill, stale).
	TimeoutsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_timeouts_fired_total",
		Help: "Inactivity timeout tickets evaluated at fire time, by action taken.",
	}, []string{"action"})

	// TokenRenewals counts upstream credential renewals, by scope and
	// status (ok, error).
	TokenRenewals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_token_renewals_total",
		Help: "Upstream API token renewals, by scope and status.",
	}, []string{"scope", "status"})

	// UpstreamOutcomes counts canonical eligibility outcomes returned by
	// the credit upstream.
	UpstreamOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_upstream_outcomes_total",
		Help: "Canonical outcomes of upstream eligibility checks.",
	}, []string{"outcome"})
)
