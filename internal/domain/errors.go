package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Rewards errors
	ErrUnknownActivity = errors.New("unknown activity type")
	ErrUnknownEvent    = errors.New("unknown reward event")
	ErrItemNotFound    = errors.New("store item not found")

	// Account errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUnknownProgress    = errors.New("unknown progress kind")
	ErrInvalidInput       = errors.New("invalid input")

	// Booking errors
	ErrBookingNotFound    = errors.New("booking not found")
	ErrInvalidSubject     = errors.New("invalid subject")
	ErrPastDate           = errors.New("cannot book a session in the past")
	ErrGuestFutureBooking = errors.New("guests can only book sessions for today")
	ErrGuestDetails       = errors.New("guest name and email are required")

	// Storage errors
	ErrStorageClosed = errors.New("storage is closed")
)
