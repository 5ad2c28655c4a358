package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// RewardStore persists one RewardState blob per user.
// LoadRewards returns (nil, nil) when the user has no ledger yet.
type RewardStore interface {
	LoadRewards(ctx context.Context, userID string) ([]byte, error)
	SaveRewards(ctx context.Context, userID string, blob []byte) error
	DeleteRewards(ctx context.Context, userID string) error
	ListRewardUsers(ctx context.Context) ([]string, error)
}

// UserStore persists registered accounts.
// Lookups by username and email are case-insensitive.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]User, error)
}

// TokenStore records revoked sign-in token IDs until they expire.
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// StatsStore persists dashboard activity stats per user.
type StatsStore interface {
	LoadStats(ctx context.Context, userID string) (*UserStats, error)
	SaveStats(ctx context.Context, userID string, s *UserStats) error
}

// BookingStore persists live-session bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, userID string) ([]Booking, error)
	MarkAttended(ctx context.Context, id string) error
}

// ChatStore persists assistant conversations per owner key.
type ChatStore interface {
	AppendChat(ctx context.Context, owner string, msgs ...ChatMessage) error
	ListChat(ctx context.Context, owner string, limit int) ([]ChatMessage, error)
	TrimChat(ctx context.Context, owner string, keep int) error
}

// RewardRecorder is the narrow hook other modules use to raise reward events.
type RewardRecorder interface {
	Record(ctx context.Context, userID string, event RewardEventType, meta ActivityMeta) (*AwardOutcome, error)
}
