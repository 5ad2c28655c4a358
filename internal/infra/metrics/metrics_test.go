package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestRewardMetrics(t *testing.T) {
	PointsAwarded.WithLabelValues("lesson").Add(50)
	Redemptions.WithLabelValues("ok").Inc()
	Redemptions.WithLabelValues("insufficient_points").Inc()
	AchievementsUnlocked.WithLabelValues("starter_100").Inc()
	ActiveStreaks.Set(3)

	names := gatheredNames(t)
	expected := []string{
		"navigate_points_awarded_total",
		"navigate_redemptions_total",
		"navigate_achievements_unlocked_total",
		"navigate_active_streaks",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAccountAndSessionMetrics(t *testing.T) {
	Signups.Inc()
	Signins.WithLabelValues("ok").Inc()
	Bookings.WithLabelValues("guest").Inc()
	AssistantMessages.Inc()

	names := gatheredNames(t)
	expected := []string{
		"navigate_signups_total",
		"navigate_signins_total",
		"navigate_bookings_total",
		"navigate_assistant_messages_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("storage").Set(1)
	HealthRecoveries.WithLabelValues("storage", "success").Inc()

	names := gatheredNames(t)
	if !names["navigate_health_check_status"] {
		t.Error("navigate_health_check_status not found")
	}
	if !names["navigate_health_recoveries_total"] {
		t.Error("navigate_health_recoveries_total not found")
	}
}
