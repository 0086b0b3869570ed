// Package metrics exposes Prometheus counters for the alerting and quota
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rule evaluation
	RulesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shorewatch_rules_evaluated_total",
		Help: "Total number of alert rule evaluations",
	})

	RulesTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shorewatch_rules_triggered_total",
		Help: "Total number of rule evaluations that triggered",
	})

	RulesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_rules_skipped_total",
		Help: "Rule evaluations skipped (missing metric or unknown operator)",
	}, []string{"reason"})

	// Quota enforcement
	QuotaChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_quota_checks_total",
		Help: "Quota checks by counter kind and result",
	}, []string{"kind", "result"})

	QuotaDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_quota_denials_total",
		Help: "Quota denials by counter kind and tier",
	}, []string{"kind", "tier"})

	// Trial lifecycle
	TrialDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shorewatch_trial_downgrades_total",
		Help: "Trial expiry downgrades applied",
	})

	// Notification dispatch
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_alert_events_total",
		Help: "Alert events by dispatch outcome",
	}, []string{"outcome"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shorewatch_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full",
	})

	NotificationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shorewatch_notifications_suppressed_total",
		Help: "Notifications suppressed by the per-rule cooldown window",
	})

	// Ingestion
	IngestSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shorewatch_ingest_sweeps_total",
		Help: "Ingestion sweeps completed",
	})

	IngestBeaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_ingest_beaches_total",
		Help: "Per-beach ingestion attempts by result",
	}, []string{"result"})

	UpstreamCallsBudgeted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_upstream_calls_total",
		Help: "Upstream provider calls by source and budget result",
	}, []string{"source", "result"})

	// HTTP surface
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shorewatch_http_requests_total",
		Help: "HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shorewatch_websocket_clients",
		Help: "Currently connected websocket clients",
	})
)
