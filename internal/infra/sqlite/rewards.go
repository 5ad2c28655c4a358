package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ─── Reward States ──────────────────────────────────────────────────────────

// LoadRewards returns the stored ledger blob, or nil if the user has none.
func (d *DB) LoadRewards(ctx context.Context, userID string) ([]byte, error) {
	var state string
	err := d.db.QueryRowContext(ctx,
		`SELECT state FROM reward_states WHERE user_id = ?`, userID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(state), nil
}

// SaveRewards replaces the ledger blob for a user.
func (d *DB) SaveRewards(ctx context.Context, userID string, blob []byte) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO reward_states (user_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at`,
		userID, string(blob), time.Now().Unix(),
	)
	return err
}

// DeleteRewards drops a user's ledger.
func (d *DB) DeleteRewards(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM reward_states WHERE user_id = ?`, userID)
	return err
}

// ListRewardUsers returns the ids of every user with a stored ledger.
func (d *DB) ListRewardUsers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM reward_states ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
