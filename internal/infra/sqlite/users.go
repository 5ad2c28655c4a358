package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/navigate-learning/navigate/internal/domain"
)

// ─── Users ──────────────────────────────────────────────────────────────────

const userColumns = `id, username, email, password_hash, created_at, last_login, progress`

// CreateUser inserts a new account. Username and email are unique ignoring case.
func (d *DB) CreateUser(ctx context.Context, u *domain.User) error {
	progress, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username_lower = ?`, strings.ToLower(u.Username),
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrUserExists
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email_lower = ?`, strings.ToLower(u.Email),
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrEmailExists
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, username, username_lower, email, email_lower, password_hash, created_at, last_login, progress)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, strings.ToLower(u.Username), u.Email, strings.ToLower(u.Email),
		u.PasswordHash, u.CreatedAt.Unix(), nullableUnix(u.LastLogin), string(progress),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetUser retrieves an account by id.
func (d *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByLogin retrieves an account by username or email, ignoring case.
func (d *DB) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	key := strings.ToLower(strings.TrimSpace(login))
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username_lower = ? OR email_lower = ? LIMIT 1`,
		key, key,
	)
	return scanUser(row)
}

// UpdateUser writes last_login and progress back.
func (d *DB) UpdateUser(ctx context.Context, u *domain.User) error {
	progress, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	result, err := d.db.ExecContext(ctx,
		`UPDATE users SET last_login = ?, progress = ?, password_hash = ? WHERE id = ?`,
		nullableUnix(u.LastLogin), string(progress), u.PasswordHash, u.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListUsers returns every account ordered by creation time.
func (d *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, username_lower`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	var createdAt int64
	var lastLogin sql.NullInt64
	var progress string

	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt, &lastLogin, &progress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.LastLogin = fromNullableUnix(lastLogin)
	if err := json.Unmarshal([]byte(progress), &u.Progress); err != nil {
		return nil, fmt.Errorf("decode progress for %s: %w", u.ID, err)
	}
	return &u, nil
}

// ─── Revoked Tokens ─────────────────────────────────────────────────────────

// RevokeToken blacklists a token id until it would have expired anyway.
func (d *DB) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.Unix(),
	)
	return err
}

// IsRevoked checks whether a token id was revoked.
func (d *DB) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&n)
	return n > 0, err
}

// PurgeExpiredTokens removes revocations whose tokens have expired.
func (d *DB) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
