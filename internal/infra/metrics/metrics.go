// Package metrics provides Prometheus metrics for Navigate.
// Counters and gauges for the rewards ledger, accounts, bookings, the
// assistant, and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Rewards ────────────────────────────────────────────────────────────────

// PointsAwarded tracks points granted by activity type.
var PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "points_awarded_total",
	Help:      "Total points granted by the rewards ledger.",
}, []string{"type"})

// Redemptions tracks store redemptions by result (ok or failure reason).
var Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "redemptions_total",
	Help:      "Total store redemption attempts.",
}, []string{"result"})

// AchievementsUnlocked tracks achievement unlocks by id.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
}, []string{"id"})

// ActiveStreaks is the number of users whose streak is still alive.
// Set by the nightly streak report.
var ActiveStreaks = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "navigate",
	Name:      "active_streaks",
	Help:      "Users with an unbroken daily streak.",
})

// ─── Accounts ───────────────────────────────────────────────────────────────

// Signups tracks new accounts.
var Signups = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "signups_total",
	Help:      "Total accounts created.",
})

// Signins tracks sign-in attempts by result.
var Signins = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "signins_total",
	Help:      "Total sign-in attempts.",
}, []string{"result"})

// ─── Sessions & Assistant ───────────────────────────────────────────────────

// Bookings tracks live-session bookings by kind (user, guest).
var Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "bookings_total",
	Help:      "Total live sessions booked.",
}, []string{"kind"})

// AssistantMessages tracks questions answered by the help assistant.
var AssistantMessages = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "assistant_messages_total",
	Help:      "Total assistant replies.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "navigate",
	Name:      "health_check_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigate",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts.",
}, []string{"check", "result"})
