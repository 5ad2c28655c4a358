package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/sqlite"
	"github.com/navigate-learning/navigate/internal/jobs"
)

type purger struct{ calls int }

func (p *purger) PurgeRevoked(context.Context) (int64, error) {
	p.calls++
	return 0, nil
}

func setup(t *testing.T) (*rewards.Ledger, *sqlite.DB, *time.Time) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	ledger := rewards.NewLedger(db, rewards.DefaultRules(), time.UTC)
	ledger.SetClock(func() time.Time { return now })
	return ledger, db, &now
}

func TestRunStreakReport(t *testing.T) {
	ledger, db, now := setup(t)
	ctx := context.Background()

	award := func(user string, day int) {
		*now = time.Date(2025, 4, day, 9, 0, 0, 0, time.UTC)
		if _, err := ledger.Award(ctx, user, domain.ActivityLogin, 5, domain.ActivityMeta{}); err != nil {
			t.Fatalf("Award(%s) error: %v", user, err)
		}
	}
	award("stale", 6)
	award("yesterday", 8)
	award("yesterday", 9)
	award("today", 10)
	*now = time.Date(2025, 4, 10, 23, 0, 0, 0, time.UTC)

	sched := jobs.NewScheduler(ledger, nil, db, jobs.Config{})
	rep, err := sched.RunStreakReport(ctx)
	if err != nil {
		t.Fatalf("RunStreakReport() error: %v", err)
	}
	if rep.Users != 3 || rep.ActiveStreaks != 2 || rep.LongestStreak != 2 {
		t.Errorf("report = %+v, want 3 users, 2 active, longest 2", rep)
	}

	stored, err := jobs.LastStreakReport(ctx, db)
	if err != nil || stored == nil || stored.Date != "2025-04-10" {
		t.Errorf("LastStreakReport() = %+v, %v", stored, err)
	}

	st, _ := ledger.State(ctx, "stale")
	if st.Streak.Current != 1 {
		t.Errorf("report must not modify ledgers, stale streak = %d", st.Streak.Current)
	}
}

func TestLastStreakReport_None(t *testing.T) {
	_, db, _ := setup(t)
	rep, err := jobs.LastStreakReport(context.Background(), db)
	if err != nil || rep != nil {
		t.Errorf("LastStreakReport() = %+v, %v; want nil, nil", rep, err)
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	ledger, db, _ := setup(t)
	sched := jobs.NewScheduler(ledger, &purger{}, db, jobs.Config{StreakReport: "every night"})
	if err := sched.Start(context.Background()); err == nil {
		t.Error("Start() should reject an invalid cron spec")
	}
}

func TestStartStop(t *testing.T) {
	ledger, db, _ := setup(t)
	sched := jobs.NewScheduler(ledger, &purger{}, db, jobs.Config{
		StreakReport: jobs.DefaultStreakReportSpec,
		TokenPurge:   jobs.DefaultTokenPurgeSpec,
	})
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	sched.Stop()
}
