package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/api"
	"github.com/navigate-learning/navigate/internal/app/account"
	"github.com/navigate-learning/navigate/internal/app/assist"
	"github.com/navigate-learning/navigate/internal/app/booking"
	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/app/tracker"
	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/health"
	"github.com/navigate-learning/navigate/internal/infra/postgres"
	"github.com/navigate-learning/navigate/internal/infra/sqlite"
	"github.com/navigate-learning/navigate/internal/jobs"
)

// Daemon is the core Navigate runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	PG     *postgres.Store // nil unless storage.driver = "postgres"
	Users  domain.UserStore

	Ledger   *rewards.Ledger
	Accounts *account.Service
	Tracker  *tracker.Service
	Booking  *booking.Service
	Assist   *assist.Service
	Health   *health.Checker
	Jobs     *jobs.Scheduler
	Server   *api.Server

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	dir := cfg.Storage.Dir
	if dir == "" {
		dir = navigateHome()
	}
	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &Daemon{Config: cfg, DB: db}

	var (
		rewardStore domain.RewardStore = db
		userStore   domain.UserStore   = db
		tokenStore  domain.TokenStore  = db
		backends                       = []health.Pinger{db}
	)
	if cfg.Storage.Driver == "postgres" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		pg, err := postgres.Open(ctx, cfg.Storage.PostgresDSN, postgres.Options{MaxConns: cfg.Storage.MaxConns})
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		d.PG = pg
		rewardStore, userStore, tokenStore = pg, pg, pg
		backends = append(backends, pg)
	}

	d.Users = userStore

	rules := rewards.DefaultRules()
	rules.Points = cfg.Rewards.Points
	d.Ledger = rewards.NewLedger(rewardStore, rules, loc)

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		log.Warn("auth.secret not set; using an ephemeral secret, sessions will not survive a restart")
	}
	d.Accounts = account.NewService(userStore, tokenStore, d.Ledger, account.Config{
		Secret:      secret,
		TokenTTL:    parseDuration(cfg.Auth.TokenTTL, 24*time.Hour),
		RememberTTL: parseDuration(cfg.Auth.RememberTTL, 30*24*time.Hour),
		BcryptCost:  cfg.Auth.BcryptCost,
	})

	d.Tracker = tracker.NewService(db, d.Ledger)
	d.Booking = booking.NewService(db, d.Accounts, d.Tracker, loc)
	d.Assist = assist.NewService(db)
	d.Health = health.NewChecker(dir, backends...)

	if cfg.Jobs.Enabled {
		d.Jobs = jobs.NewScheduler(d.Ledger, d.Accounts, db, jobs.Config{
			StreakReport: cfg.Jobs.StreakReport,
			TokenPurge:   cfg.Jobs.TokenPurge,
		})
	}

	d.Server = api.NewServer(api.Services{
		Accounts: d.Accounts,
		Ledger:   d.Ledger,
		Tracker:  d.Tracker,
		Booking:  d.Booking,
		Assist:   d.Assist,
		Health:   d.Health,
	})
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// Serve starts the HTTP server and background jobs, and blocks until
// ctx is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	go d.Health.Run(ctx)

	if d.Jobs != nil {
		if err := d.Jobs.Start(ctx); err != nil {
			return err
		}
		defer d.Jobs.Stop()
	}

	addr := fmt.Sprintf("%s:%d", d.Config.Server.Host, d.Config.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("daemon: shutting down")
		case <-ctx.Done():
		}

		timeout := parseDuration(d.Config.Server.ShutdownTimeout, 30*time.Second)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{
		"addr":    "http://" + addr,
		"storage": d.Config.Storage.Driver,
		"tz":      d.Ledger.Location().String(),
		"metrics": d.Config.Telemetry.Prometheus,
	}).Info("Navigate serving")

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.PG != nil {
		_ = d.PG.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
