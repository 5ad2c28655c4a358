package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LoadRewards returns the stored ledger blob, or nil if the user has none.
func (s *Store) LoadRewards(ctx context.Context, userID string) ([]byte, error) {
	var state []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state::text FROM reward_states WHERE user_id = $1`, userID,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rewards (user=%s): %w", userID, err)
	}
	return state, nil
}

// SaveRewards replaces the ledger blob for a user.
func (s *Store) SaveRewards(ctx context.Context, userID string, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reward_states (user_id, state, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = NOW()`,
		userID, string(blob),
	)
	if err != nil {
		return fmt.Errorf("save rewards (user=%s): %w", userID, err)
	}
	return nil
}

// DeleteRewards drops a user's ledger.
func (s *Store) DeleteRewards(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reward_states WHERE user_id = $1`, userID)
	return err
}

// ListRewardUsers returns the ids of every user with a stored ledger.
func (s *Store) ListRewardUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM reward_states ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list reward users: %w", err)
	}
	return ids, nil
}
