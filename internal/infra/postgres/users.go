package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/navigate-learning/navigate/internal/domain"
)

const userColumns = `id, username, email, password_hash, created_at, last_login, progress::text`

// CreateUser inserts a new account. Username and email are unique ignoring case.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	progress, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, last_login, progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt, u.LastLogin, string(progress),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return domain.ErrEmailExists
		}
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser retrieves an account by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByLogin retrieves an account by username or email, ignoring case.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	key := strings.ToLower(strings.TrimSpace(login))
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = $1 OR LOWER(email) = $1 LIMIT 1`, key,
	))
}

// UpdateUser writes last_login, progress and password hash back.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	progress, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login = $1, progress = $2::jsonb, password_hash = $3 WHERE id = $4`,
		u.LastLogin, string(progress), u.PasswordHash, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListUsers returns every account ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, LOWER(username)`)
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

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var progress string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastLogin, &progress)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if u.LastLogin != nil {
		t := u.LastLogin.UTC()
		u.LastLogin = &t
	}
	if err := json.Unmarshal([]byte(progress), &u.Progress); err != nil {
		return nil, fmt.Errorf("decode progress for %s: %w", u.ID, err)
	}
	return &u, nil
}

// ─── Revoked Tokens ─────────────────────────────────────────────────────────

// RevokeToken blacklists a token id until it would have expired anyway.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2) ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt,
	)
	return err
}

// IsRevoked checks whether a token id was revoked.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti,
	).Scan(&exists)
	return exists, err
}

// PurgeExpiredTokens removes revocations whose tokens have expired.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
