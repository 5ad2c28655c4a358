// Package booking schedules live tutoring sessions for registered users and
// same-day guests, and hands attendance over to activity tracking.
package booking

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/metrics"
)

// ProgressUpdater appends a booked session to an account's progress.
type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, userID string, kind domain.ProgressKind, upd domain.ProgressUpdate) (*domain.User, error)
}

// SessionTracker records attended sessions in the activity stats.
type SessionTracker interface {
	SessionAttended(ctx context.Context, userID, title string, minutes int) error
}

// Service books and tracks live sessions.
type Service struct {
	bookings domain.BookingStore
	progress ProgressUpdater
	tracker  SessionTracker
	loc      *time.Location
	now      func() time.Time
	newLink  func() string
}

// NewService creates a booking service. progress and tracker may be nil.
func NewService(bookings domain.BookingStore, progress ProgressUpdater, tracker SessionTracker, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		bookings: bookings,
		progress: progress,
		tracker:  tracker,
		loc:      loc,
		now:      time.Now,
		newLink:  MeetLink,
	}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Book schedules a session. Users may book today or later; guests only today.
func (s *Service) Book(ctx context.Context, who domain.Booker, subject, date, timeOfDay string) (*domain.Booking, error) {
	if !domain.ValidSubject(subject) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSubject, subject)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return nil, fmt.Errorf("%w: time must be HH:MM", domain.ErrInvalidInput)
	}

	today := s.now().In(s.loc).Format(domain.DateLayout)
	if date < today {
		return nil, domain.ErrPastDate
	}

	if who.IsGuest() {
		who.GuestName = strings.TrimSpace(who.GuestName)
		who.GuestEmail = strings.TrimSpace(who.GuestEmail)
		if who.GuestName == "" || who.GuestEmail == "" {
			return nil, domain.ErrGuestDetails
		}
		if date != today {
			return nil, domain.ErrGuestFutureBooking
		}
	}

	b := &domain.Booking{
		ID:         uuid.NewString(),
		UserID:     who.UserID,
		GuestName:  who.GuestName,
		GuestEmail: who.GuestEmail,
		Guest:      who.IsGuest(),
		Subject:    subject,
		Date:       date,
		Time:       timeOfDay,
		MeetLink:   s.newLink(),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	kind := "user"
	if b.Guest {
		kind = "guest"
	}
	metrics.Bookings.WithLabelValues(kind).Inc()

	if !b.Guest && s.progress != nil {
		if _, err := s.progress.UpdateProgress(ctx, b.UserID, domain.ProgressSession, domain.ProgressUpdate{
			SessionID: b.ID,
			Subject:   b.Subject,
			Date:      b.Date,
		}); err != nil {
			log.WithFields(log.Fields{"user": b.UserID, "booking": b.ID, "error": err}).Warn("booking: progress update failed")
		}
	}

	log.WithFields(log.Fields{
		"booking": b.ID,
		"kind":    kind,
		"subject": b.Subject,
		"date":    b.Date,
	}).Info("booking: session booked")
	return b, nil
}

// List returns a user's bookings in date order.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.bookings.ListBookings(ctx, userID)
}

// Attend marks the user's booking attended and tracks the session minutes.
// Attending twice is a no-op.
func (s *Service) Attend(ctx context.Context, userID, bookingID string, minutes int) (*domain.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.ErrBookingNotFound
	}
	if b.Attended {
		return b, nil
	}
	if err := s.bookings.MarkAttended(ctx, bookingID); err != nil {
		return nil, err
	}
	b.Attended = true

	if s.tracker != nil && !b.Guest {
		if err := s.tracker.SessionAttended(ctx, userID, SubjectTitle(b.Subject)+" live session", minutes); err != nil {
			return nil, fmt.Errorf("track session: %w", err)
		}
	}
	return b, nil
}

// SubjectTitle turns a subject slug into a display title.
func SubjectTitle(subject string) string {
	switch subject {
	case domain.SubjectUSHistory:
		return "US History"
	case domain.SubjectWorldHistory:
		return "World History"
	case domain.SubjectEuropeanHistory:
		return "European History"
	}
	return subject
}

// MeetLink generates a meet.google.com/xxx-xxxx-xxx style link:
// three groups of 3 or 4 lowercase letters.
func MeetLink() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	var sb strings.Builder
	sb.WriteString("meet.google.com/")
	for g := 0; g < 3; g++ {
		if g > 0 {
			sb.WriteByte('-')
		}
		n := 3 + rand.Intn(2)
		for i := 0; i < n; i++ {
			sb.WriteByte(letters[rand.Intn(len(letters))])
		}
	}
	return sb.String()
}
