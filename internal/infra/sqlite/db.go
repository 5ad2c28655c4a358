// Package sqlite provides SQLite-based persistent storage for Navigate.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/navigate.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "navigate.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver names the backend for logs and health output.
func (d *DB) Driver() string { return "sqlite" }

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// ─── Rewards ledger: one JSON document per user ────────────────
		`CREATE TABLE IF NOT EXISTS reward_states (
			user_id    TEXT PRIMARY KEY,
			state      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// ─── Accounts ──────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			username       TEXT NOT NULL,
			username_lower TEXT NOT NULL UNIQUE,
			email          TEXT NOT NULL,
			email_lower    TEXT NOT NULL UNIQUE,
			password_hash  TEXT NOT NULL,
			created_at     INTEGER NOT NULL,
			last_login     INTEGER,
			progress       TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS revoked_tokens (
			jti        TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_revoked_expires ON revoked_tokens(expires_at)`,

		// ─── Activity tracking ─────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id    TEXT PRIMARY KEY,
			stats      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// ─── Live sessions ─────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS bookings (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL DEFAULT '',
			guest_name  TEXT NOT NULL DEFAULT '',
			guest_email TEXT NOT NULL DEFAULT '',
			guest       BOOLEAN NOT NULL DEFAULT 0,
			subject     TEXT NOT NULL,
			date        TEXT NOT NULL,
			time        TEXT NOT NULL,
			meet_link   TEXT NOT NULL,
			attended    BOOLEAN NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, date)`,

		// ─── Assistant history ─────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			owner  TEXT NOT NULL,
			sender TEXT NOT NULL,
			text   TEXT NOT NULL,
			ts     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_owner ON chat_messages(owner, id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Meta ───────────────────────────────────────────────────────────────────

// SetMeta stores a key-value pair in the meta table.
func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetMeta retrieves a value from the meta table ("" if unset).
func (d *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullableUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}
