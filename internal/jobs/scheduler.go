// Package jobs runs Navigate's scheduled background tasks.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/infra/metrics"
)

// Default schedules, evaluated in the rewards timezone.
const (
	DefaultStreakReportSpec = "5 0 * * *"
	DefaultTokenPurgeSpec   = "0 * * * *"
)

// lastReportKey is the meta key holding the latest streak report.
const lastReportKey = "jobs.streak_report"

// Purger removes expired token revocations.
type Purger interface {
	PurgeRevoked(ctx context.Context) (int64, error)
}

// MetaStore keeps small key/value records.
type MetaStore interface {
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
}

// Config holds the cron specs. An empty spec disables that job.
type Config struct {
	StreakReport string
	TokenPurge   string
}

// StreakReport summarizes streak health on a given day.
type StreakReport struct {
	Date          string `json:"date"`
	Users         int    `json:"users"`
	ActiveStreaks int    `json:"active_streaks"`
	LongestStreak int    `json:"longest_streak"`
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	ledger *rewards.Ledger
	purger Purger
	meta   MetaStore
}

// NewScheduler creates a scheduler in the ledger's timezone. purger and meta may be nil.
func NewScheduler(ledger *rewards.Ledger, purger Purger, meta MetaStore, cfg Config) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(ledger.Location())),
		cfg:    cfg,
		ledger: ledger,
		purger: purger,
		meta:   meta,
	}
}

// Start registers the jobs and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.StreakReport != "" {
		if _, err := s.cron.AddFunc(s.cfg.StreakReport, func() {
			if _, err := s.RunStreakReport(ctx); err != nil {
				log.WithError(err).Error("jobs: streak report failed")
			}
		}); err != nil {
			return fmt.Errorf("streak report schedule %q: %w", s.cfg.StreakReport, err)
		}
	}

	if s.cfg.TokenPurge != "" && s.purger != nil {
		if _, err := s.cron.AddFunc(s.cfg.TokenPurge, func() {
			n, err := s.purger.PurgeRevoked(ctx)
			if err != nil {
				log.WithError(err).Error("jobs: token purge failed")
				return
			}
			log.WithField("purged", n).Debug("jobs: expired revocations purged")
		}); err != nil {
			return fmt.Errorf("token purge schedule %q: %w", s.cfg.TokenPurge, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"streak_report": s.cfg.StreakReport,
		"token_purge":   s.cfg.TokenPurge,
		"tz":            s.ledger.Location().String(),
	}).Info("jobs: scheduler started")
	return nil
}

// Stop waits for running jobs and stops the runner.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("jobs: scheduler stopped")
}

// RunStreakReport counts live streaks, updates the gauge and records the report.
// It never modifies a ledger.
func (s *Scheduler) RunStreakReport(ctx context.Context) (*StreakReport, error) {
	users, err := s.ledger.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	rep := &StreakReport{Date: s.ledger.Today(), Users: len(users)}
	for _, id := range users {
		st, err := s.ledger.State(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		if !rewards.StreakAlive(st.Streak, rep.Date) {
			continue
		}
		rep.ActiveStreaks++
		if st.Streak.Current > rep.LongestStreak {
			rep.LongestStreak = st.Streak.Current
		}
	}

	metrics.ActiveStreaks.Set(float64(rep.ActiveStreaks))
	if s.meta != nil {
		if blob, err := json.Marshal(rep); err == nil {
			if err := s.meta.SetMeta(ctx, lastReportKey, string(blob)); err != nil {
				log.WithError(err).Warn("jobs: could not store streak report")
			}
		}
	}

	log.WithFields(log.Fields{
		"date":    rep.Date,
		"users":   rep.Users,
		"active":  rep.ActiveStreaks,
		"longest": rep.LongestStreak,
	}).Info("jobs: streak report")
	return rep, nil
}

// LastStreakReport returns the most recently stored report, or nil.
func LastStreakReport(ctx context.Context, meta MetaStore) (*StreakReport, error) {
	raw, err := meta.GetMeta(ctx, lastReportKey)
	if err != nil || raw == "" {
		return nil, err
	}
	var rep StreakReport
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return nil, fmt.Errorf("decode streak report: %w", err)
	}
	return &rep, nil
}
