// Package daemon manages the Navigate server lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/jobs"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Auth      AuthConfig      `toml:"auth"`
	Rewards   RewardsConfig   `toml:"rewards"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Jobs      JobsConfig      `toml:"jobs"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// StorageConfig selects the backend. "sqlite" keeps everything in Dir;
// "postgres" moves ledgers, accounts and revocations to PostgresDSN.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	Dir         string `toml:"dir"`
	PostgresDSN string `toml:"postgres_dsn"`
	MaxConns    int32  `toml:"max_conns"`
}

// AuthConfig controls session tokens and password hashing.
type AuthConfig struct {
	Secret      string `toml:"secret"`
	TokenTTL    string `toml:"token_ttl"`
	RememberTTL string `toml:"remember_ttl"`
	BcryptCost  int    `toml:"bcrypt_cost"`
}

// RewardsConfig controls the ledger calendar and point values.
type RewardsConfig struct {
	Timezone string             `toml:"timezone"`
	Points   rewards.PointTable `toml:"points"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
	File   string `toml:"file"`
}

// TelemetryConfig controls the metrics endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// JobsConfig holds cron specs for background jobs.
type JobsConfig struct {
	Enabled      bool   `toml:"enabled"`
	StreakReport string `toml:"streak_report"`
	TokenPurge   string `toml:"token_purge"`
}

// envOverrides are the NAVIGATE_* variables applied on top of the TOML file.
type envOverrides struct {
	Host          string `envconfig:"HOST"`
	Port          int    `envconfig:"PORT"`
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	Timezone      string `envconfig:"TIMEZONE"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := navigateHome()
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: "30s",
		},
		Storage: StorageConfig{
			Driver:   "sqlite",
			Dir:      homeDir,
			MaxConns: 10,
		},
		Auth: AuthConfig{
			TokenTTL:    "24h",
			RememberTTL: "720h",
			BcryptCost:  10,
		},
		Rewards: RewardsConfig{
			Timezone: "Local",
			Points:   rewards.DefaultPoints(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Jobs: JobsConfig{
			Enabled:      true,
			StreakReport: jobs.DefaultStreakReportSpec,
			TokenPurge:   jobs.DefaultTokenPurgeSpec,
		},
	}
}

// LoadConfig reads $NAVIGATE_HOME/config.toml, then .env files, then
// NAVIGATE_* environment overrides.
func LoadConfig() (Config, error) {
	return loadConfigFrom(filepath.Join(navigateHome(), "config.toml"))
}

func loadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	for _, env := range []string{".env", filepath.Join(navigateHome(), ".env")} {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", env, err)
		}
	}

	var ov envOverrides
	if err := envconfig.Process("navigate", &ov); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	applyOverrides(&cfg, ov)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, ov envOverrides) {
	if ov.Host != "" {
		cfg.Server.Host = ov.Host
	}
	if ov.Port != 0 {
		cfg.Server.Port = ov.Port
	}
	if ov.StorageDriver != "" {
		cfg.Storage.Driver = ov.StorageDriver
	}
	if ov.PostgresDSN != "" {
		cfg.Storage.PostgresDSN = ov.PostgresDSN
	}
	if ov.JWTSecret != "" {
		cfg.Auth.Secret = ov.JWTSecret
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = ov.LogLevel
	}
	if ov.Timezone != "" {
		cfg.Rewards.Timezone = ov.Timezone
	}
}

// Validate checks values that would otherwise fail at startup.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the rewards timezone.
func (c Config) Location() (*time.Location, error) {
	tz := c.Rewards.Timezone
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("rewards.timezone %q: %w", tz, err)
	}
	return loc, nil
}

// SaveConfig writes the config to $NAVIGATE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(navigateHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// navigateHome returns the Navigate data directory.
func navigateHome() string {
	if env := os.Getenv("NAVIGATE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".navigate")
}

// NavigateHome is exported for use by other packages.
func NavigateHome() string {
	return navigateHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
