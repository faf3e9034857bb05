// Package metrics defines and registers all custom Prometheus metrics for the
// installation API. It is the single source of truth for metric names, labels,
// and help strings. Metrics are registered on the default registry at init
// through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fieldops"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts login and registration outcomes.
// Labels:
//   - kind: "login" or "register"
//   - result: "ok", "invalid_credentials", "forbidden", "conflict", "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of login and registration attempts, by outcome.",
	},
	[]string{"kind", "result"},
)

// SessionsIssuedTotal counts sessions created after a rotation.
var SessionsIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_issued_total",
		Help:      "Total number of sessions issued by login or registration.",
	},
)

// RateLimitedTotal counts requests rejected by a rate limiter.
// Label:
//   - scope: "auth" (login/register window) or "api" (global token bucket)
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by rate limiting.",
	},
	[]string{"scope"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditWritesTotal counts audit entries by final outcome.
// Label:
//   - result: "ok", "error" (persistence failed), "dropped" (queue full)
var AuditWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_writes_total",
		Help:      "Total number of audit entries, by persistence outcome.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks entries waiting in each audit worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit entries pending in each worker channel.",
	},
	[]string{"worker_id"},
)

// AuditWriteDuration measures a single audit insert.
var AuditWriteDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_write_duration_seconds",
		Help:      "Duration of audit log inserts.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Installation metrics ──────────────────────────────────────────────────────

// InstallationStatusChangesTotal counts status transitions by target status.
var InstallationStatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "installation_status_changes_total",
		Help:      "Total number of installation status transitions, by new status.",
	},
	[]string{"status"},
)

// ChecklistUpsertsTotal counts checklist response upserts.
// Label:
//   - result: "created", "updated", "retried" (lost an insert race, applied as update)
var ChecklistUpsertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checklist_upserts_total",
		Help:      "Total number of checklist response upserts, by outcome.",
	},
	[]string{"result"},
)
