package domain

import "time"

// ─── Live Sessions ──────────────────────────────────────────────────────────

// Subjects a live session can be booked for.
const (
	SubjectUSHistory       = "us-history"
	SubjectWorldHistory    = "world-history"
	SubjectEuropeanHistory = "european-history"
)

// ValidSubject reports whether s is a bookable subject.
func ValidSubject(s string) bool {
	switch s {
	case SubjectUSHistory, SubjectWorldHistory, SubjectEuropeanHistory:
		return true
	}
	return false
}

// TopicForSubject maps a subject slug onto its rewards topic.
func TopicForSubject(s string) string {
	switch s {
	case SubjectUSHistory:
		return "us"
	case SubjectWorldHistory:
		return "world"
	case SubjectEuropeanHistory:
		return "eu"
	}
	return ""
}

// Booker identifies who is booking: a registered user or a guest.
type Booker struct {
	UserID     string `json:"user_id,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestEmail string `json:"guest_email,omitempty"`
}

// IsGuest reports whether the booker has no account.
func (b Booker) IsGuest() bool { return b.UserID == "" }

// Booking is a scheduled live tutoring session.
type Booking struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	GuestName  string    `json:"guest_name,omitempty"`
	GuestEmail string    `json:"guest_email,omitempty"`
	Guest      bool      `json:"guest"`
	Subject    string    `json:"subject"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Time       string    `json:"time"` // HH:MM
	MeetLink   string    `json:"meet_link"`
	Attended   bool      `json:"attended"`
	CreatedAt  time.Time `json:"created_at"`
}

// ─── Assistant ──────────────────────────────────────────────────────────────

// ChatSender is who wrote a chat message.
type ChatSender string

const (
	SenderUser ChatSender = "user"
	SenderBot  ChatSender = "bot"
)

// ChatMessage is one line in an assistant conversation.
type ChatMessage struct {
	Text string     `json:"text"`
	From ChatSender `json:"from"`
	At   time.Time  `json:"ts"`
}
