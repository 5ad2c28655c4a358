package booking

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/sqlite"
)

type fakeProgress struct{ calls []domain.ProgressUpdate }

func (f *fakeProgress) UpdateProgress(_ context.Context, _ string, kind domain.ProgressKind, upd domain.ProgressUpdate) (*domain.User, error) {
	if kind == domain.ProgressSession {
		f.calls = append(f.calls, upd)
	}
	return &domain.User{}, nil
}

type fakeTracker struct {
	titles  []string
	minutes int
}

func (f *fakeTracker) SessionAttended(_ context.Context, _ string, title string, minutes int) error {
	f.titles = append(f.titles, title)
	f.minutes += minutes
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeProgress, *fakeTracker) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fp, ft := &fakeProgress{}, &fakeTracker{}
	svc := NewService(db, fp, ft, time.UTC)
	svc.SetClock(func() time.Time { return time.Date(2025, 4, 10, 15, 0, 0, 0, time.UTC) })
	return svc, fp, ft
}

var meetPattern = regexp.MustCompile(`^meet\.google\.com/[a-z]{3,4}-[a-z]{3,4}-[a-z]{3,4}$`)

func TestMeetLink_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		if link := MeetLink(); !meetPattern.MatchString(link) {
			t.Fatalf("MeetLink() = %q, does not match %s", link, meetPattern)
		}
	}
}

func TestBook_RegisteredUser(t *testing.T) {
	svc, fp, _ := newTestService(t)
	ctx := context.Background()
	user := domain.Booker{UserID: "u1"}

	b, err := svc.Book(ctx, user, domain.SubjectUSHistory, "2025-04-12", "10:30")
	if err != nil {
		t.Fatalf("Book() error: %v", err)
	}
	if b.Guest || b.UserID != "u1" || !meetPattern.MatchString(b.MeetLink) {
		t.Errorf("booking = %+v", b)
	}
	if len(fp.calls) != 1 || fp.calls[0].SessionID != b.ID {
		t.Errorf("progress calls = %+v, want booking appended", fp.calls)
	}

	if _, err := svc.Book(ctx, user, domain.SubjectWorldHistory, "2025-04-10", "18:00"); err != nil {
		t.Errorf("same-day booking error: %v", err)
	}
	list, _ := svc.List(ctx, "u1")
	if len(list) != 2 || list[0].Date != "2025-04-10" {
		t.Errorf("List() = %+v", list)
	}
}

func TestBook_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	user := domain.Booker{UserID: "u1"}
	guest := domain.Booker{GuestName: "Sam", GuestEmail: "sam@example.com"}

	tests := []struct {
		name    string
		who     domain.Booker
		subject string
		date    string
		time    string
		want    error
	}{
		{"bad subject", user, "art-history", "2025-04-12", "10:00", domain.ErrInvalidSubject},
		{"bad date", user, domain.SubjectUSHistory, "12/04/2025", "10:00", domain.ErrInvalidInput},
		{"bad time", user, domain.SubjectUSHistory, "2025-04-12", "25:99", domain.ErrInvalidInput},
		{"past date", user, domain.SubjectUSHistory, "2025-04-09", "10:00", domain.ErrPastDate},
		{"guest future", guest, domain.SubjectUSHistory, "2025-04-11", "10:00", domain.ErrGuestFutureBooking},
		{"guest missing email", domain.Booker{GuestName: "Sam"}, domain.SubjectUSHistory, "2025-04-10", "10:00", domain.ErrGuestDetails},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, tt.who, tt.subject, tt.date, tt.time)
			if !errors.Is(err, tt.want) {
				t.Errorf("Book() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBook_GuestToday(t *testing.T) {
	svc, fp, _ := newTestService(t)
	b, err := svc.Book(context.Background(),
		domain.Booker{GuestName: " Sam ", GuestEmail: "sam@example.com"},
		domain.SubjectEuropeanHistory, "2025-04-10", "16:00")
	if err != nil {
		t.Fatalf("Book(guest) error: %v", err)
	}
	if !b.Guest || b.GuestName != "Sam" {
		t.Errorf("guest booking = %+v", b)
	}
	if len(fp.calls) != 0 {
		t.Error("guest booking must not touch account progress")
	}
}

func TestBook_TimezoneToday(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.loc = time.FixedZone("UTC+10", 10*3600)
	// 15:00 UTC on the 10th is already the 11th at UTC+10.
	_, err := svc.Book(context.Background(),
		domain.Booker{GuestName: "Sam", GuestEmail: "sam@example.com"},
		domain.SubjectUSHistory, "2025-04-11", "09:00")
	if err != nil {
		t.Errorf("guest booking for local today error: %v", err)
	}
}

func TestAttend(t *testing.T) {
	svc, _, ft := newTestService(t)
	ctx := context.Background()
	b, _ := svc.Book(ctx, domain.Booker{UserID: "u1"}, domain.SubjectWorldHistory, "2025-04-10", "16:00")

	if _, err := svc.Attend(ctx, "u2", b.ID, 30); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("other user's booking err = %v, want ErrBookingNotFound", err)
	}

	got, err := svc.Attend(ctx, "u1", b.ID, 45)
	if err != nil {
		t.Fatalf("Attend() error: %v", err)
	}
	if !got.Attended {
		t.Error("booking should be attended")
	}
	_, _ = svc.Attend(ctx, "u1", b.ID, 45)

	if len(ft.titles) != 1 || ft.titles[0] != "World History live session" || ft.minutes != 45 {
		t.Errorf("tracked = %v / %d min, want one World History session of 45", ft.titles, ft.minutes)
	}
}
