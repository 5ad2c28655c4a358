package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navigate-learning/navigate/internal/domain"
)

// ─── User Stats ─────────────────────────────────────────────────────────────

// LoadStats returns the stored stats, or an empty record for a new user.
func (d *DB) LoadStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	var raw string
	err := d.db.QueryRowContext(ctx,
		`SELECT stats FROM user_stats WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewUserStats(), nil
	}
	if err != nil {
		return nil, err
	}
	stats := domain.NewUserStats()
	if err := json.Unmarshal([]byte(raw), stats); err != nil {
		return nil, fmt.Errorf("decode stats for %s: %w", userID, err)
	}
	return stats, nil
}

// SaveStats replaces the stats record for a user.
func (d *DB) SaveStats(ctx context.Context, userID string, s *domain.UserStats) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, stats, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET stats=excluded.stats, updated_at=excluded.updated_at`,
		userID, string(raw), time.Now().Unix(),
	)
	return err
}

// ─── Bookings ───────────────────────────────────────────────────────────────

const bookingColumns = `id, user_id, guest_name, guest_email, guest, subject, date, time, meet_link, attended, created_at`

// CreateBooking inserts a live-session booking.
func (d *DB) CreateBooking(ctx context.Context, b *domain.Booking) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.GuestName, b.GuestEmail, b.Guest, b.Subject,
		b.Date, b.Time, b.MeetLink, b.Attended, b.CreatedAt.Unix(),
	)
	return err
}

// GetBooking retrieves a booking by id.
func (d *DB) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// ListBookings returns a user's bookings ordered by date and time.
func (d *DB) ListBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY date, time`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// MarkAttended flags a booking as attended.
func (d *DB) MarkAttended(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE bookings SET attended = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var b domain.Booking
	var createdAt int64
	err := s.Scan(&b.ID, &b.UserID, &b.GuestName, &b.GuestEmail, &b.Guest, &b.Subject,
		&b.Date, &b.Time, &b.MeetLink, &b.Attended, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &b, nil
}

// ─── Assistant Chat ─────────────────────────────────────────────────────────

// AppendChat stores messages for a conversation owner in order.
func (d *DB) AppendChat(ctx context.Context, owner string, msgs ...domain.ChatMessage) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (owner, sender, text, ts) VALUES (?, ?, ?, ?)`,
			owner, string(m.From), m.Text, m.At.UnixMilli(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChat returns the newest limit messages, oldest first.
func (d *DB) ListChat(ctx context.Context, owner string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT sender, text, ts FROM (
			SELECT id, sender, text, ts FROM chat_messages WHERE owner = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		owner, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var sender string
		var ts int64
		if err := rows.Scan(&sender, &m.Text, &ts); err != nil {
			return nil, err
		}
		m.From = domain.ChatSender(sender)
		m.At = time.UnixMilli(ts).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// TrimChat deletes all but the newest keep messages of a conversation.
func (d *DB) TrimChat(ctx context.Context, owner string, keep int) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE owner = ? AND id NOT IN (
			SELECT id FROM chat_messages WHERE owner = ? ORDER BY id DESC LIMIT ?
		 )`,
		owner, owner, keep,
	)
	return err
}
