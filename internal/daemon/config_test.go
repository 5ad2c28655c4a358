package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/navigate-learning/navigate/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("NAVIGATE_HOME", t.TempDir())
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Rewards.Points.Lesson != 50 || cfg.Rewards.Points.DailyLogin != 5 {
		t.Errorf("Rewards.Points = %+v", cfg.Rewards.Points)
	}
	if cfg.Jobs.StreakReport != "5 0 * * *" {
		t.Errorf("Jobs.StreakReport = %q", cfg.Jobs.StreakReport)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NAVIGATE_HOME", home)
	t.Setenv("NAVIGATE_PORT", "9090")
	t.Setenv("NAVIGATE_JWT_SECRET", "from-env")

	toml := `
[server]
host = "0.0.0.0"
port = 7000

[rewards]
timezone = "Asia/Tokyo"

[rewards.points]
lesson = 75
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want from file", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, env should win", cfg.Server.Port)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("Secret = %q", cfg.Auth.Secret)
	}
	if cfg.Rewards.Points.Lesson != 75 || cfg.Rewards.Points.Quiz != 30 {
		t.Errorf("Points = %+v, want lesson overridden, quiz default", cfg.Rewards.Points)
	}
	loc, _ := cfg.Location()
	if loc.String() != "Asia/Tokyo" {
		t.Errorf("Location() = %s", loc)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NAVIGATE_HOME", home)
	t.Setenv("NAVIGATE_LOG_LEVEL", "")
	os.Unsetenv("NAVIGATE_LOG_LEVEL")
	t.Cleanup(func() { os.Unsetenv("NAVIGATE_LOG_LEVEL") })

	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("NAVIGATE_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from .env", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("NAVIGATE_HOME", t.TempDir())
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, false},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Driver = "postgres"
			c.Storage.PostgresDSN = "postgres://localhost/navigate"
		}, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, false},
		{"bad timezone", func(c *Config) { c.Rewards.Timezone = "Mars/Olympus" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("NAVIGATE_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Rewards.Points.WeeklyStreak = 70
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.Rewards.Points.WeeklyStreak != 70 {
		t.Errorf("WeeklyStreak = %d, want 70", got.Rewards.Points.WeeklyStreak)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"90m", 90 * time.Minute},
		{"", time.Hour},
		{"soon", time.Hour},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.input, time.Hour); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWithConfig_WiresServices(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NAVIGATE_HOME", home)
	cfg := DefaultConfig()
	cfg.Rewards.Timezone = "UTC"
	cfg.Rewards.Points.DailyLogin = 7
	cfg.Auth.BcryptCost = 4

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if _, err := d.Accounts.Signup(ctx, "ada", "ada@example.com", "pw"); err != nil {
		t.Fatalf("Signup() error: %v", err)
	}
	sess, err := d.Accounts.Signin(ctx, "ada", "pw", false)
	if err != nil {
		t.Fatalf("Signin() error: %v", err)
	}
	st, _ := d.Ledger.State(ctx, sess.User.ID)
	if st.TotalPoints != 7 || len(st.ActivityHistory) != 1 {
		t.Errorf("ledger = %d points / %d records, want one login at the configured value", st.TotalPoints, len(st.ActivityHistory))
	}
	if d.Jobs == nil {
		t.Error("jobs should be wired by default")
	}
	if _, err := os.Stat(filepath.Join(home, "navigate.db")); err != nil {
		t.Errorf("database not created in NAVIGATE_HOME: %v", err)
	}
	var _ domain.RewardStore = d.DB
}
