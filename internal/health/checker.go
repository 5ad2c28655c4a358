// Package health runs periodic storage and data-directory checks.
package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/infra/metrics"
)

// DefaultInterval is how often checks run.
const DefaultInterval = 60 * time.Second

// Pinger is a storage backend that can be pinged.
type Pinger interface {
	Ping(ctx context.Context) error
	Driver() string
}

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker that pings every backend and verifies dataDir.
func NewChecker(dataDir string, backends ...Pinger) *Checker {
	c := &Checker{interval: DefaultInterval}
	for _, b := range backends {
		b := b
		c.checks = append(c.checks, Check{
			Name:    b.Driver(),
			CheckFn: b.Ping,
			RecoverFn: func(ctx context.Context) error {
				// One delayed retry; pools reconnect on their own.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
				return b.Ping(ctx)
			},
		})
	}
	c.checks = append(c.checks, Check{
		Name: "data_dir",
		CheckFn: func(ctx context.Context) error {
			return checkWritable(dataDir)
		},
		RecoverFn: func(ctx context.Context) error {
			return os.MkdirAll(dataDir, 0o755)
		},
	})
	return c
}

// SetInterval overrides the check period.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce executes every check and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr == nil {
					metrics.HealthRecoveries.WithLabelValues(check.Name, "ok").Inc()
					s.Healthy = true
					s.Error = ""
				} else {
					metrics.HealthRecoveries.WithLabelValues(check.Name, "failed").Inc()
				}
			}
			if !s.Healthy {
				log.WithFields(log.Fields{"check": check.Name, "error": err}).Error("health: check failed")
			}
		} else {
			s.Healthy = true
		}

		v := 0.0
		if s.Healthy {
			v = 1
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(v)
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
