package domain

import "time"

// ─── Accounts ───────────────────────────────────────────────────────────────

// User is a registered learner. PasswordHash is never serialized.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	LastLogin    *time.Time   `json:"last_login,omitempty"`
	Progress     UserProgress `json:"progress"`
}

// UserProgress is the coarse per-account progress record.
type UserProgress struct {
	CompletedLessons []string          `json:"completed_lessons"`
	QuizScores       []QuizScore       `json:"quiz_scores"`
	TotalStudyTime   int               `json:"total_study_time"` // minutes
	SessionsAttended []AttendedSession `json:"sessions_attended"`
}

// QuizScore is one recorded quiz attempt.
type QuizScore struct {
	QuizID      string    `json:"quiz_id"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// AttendedSession links a user to a booked live session.
type AttendedSession struct {
	SessionID  string    `json:"session_id"`
	Subject    string    `json:"subject"`
	Date       string    `json:"date"`
	AttendedAt time.Time `json:"attended_at"`
}

// ProgressKind selects the progress field updated by UpdateProgress.
type ProgressKind string

const (
	ProgressLesson    ProgressKind = "lesson"
	ProgressQuiz      ProgressKind = "quiz"
	ProgressSession   ProgressKind = "session"
	ProgressStudyTime ProgressKind = "studytime"
)

// ProgressUpdate carries the data for one progress change.
type ProgressUpdate struct {
	LessonID  string
	QuizID    string
	Score     int
	SessionID string
	Subject   string
	Date      string
	Minutes   int
}

// Session is an issued sign-in token.
type Session struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// ─── Activity Stats (dashboard) ─────────────────────────────────────────────

// ActivityLogEntry is one row of the dashboard activity table.
type ActivityLogEntry struct {
	Type      string    `json:"type"`   // lesson | video | quiz | download | session
	Action    string    `json:"action"` // started | completed | watched | accessed | attended
	Title     string    `json:"title"`
	Subject   string    `json:"subject,omitempty"`
	Score     *int      `json:"score,omitempty"`
	Duration  int       `json:"duration,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QuizResult is a quiz attempt kept in the activity stats.
type QuizResult struct {
	QuizID         string    `json:"quiz_id"`
	Title          string    `json:"title"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Timestamp      time.Time `json:"timestamp"`
}

// UserStats is the per-user activity tracking record.
type UserStats struct {
	LessonsCompleted     int                `json:"lessons_completed"`
	LessonsStarted       int                `json:"lessons_started"`
	VideosWatched        int                `json:"videos_watched"`
	QuizzesTaken         int                `json:"quizzes_taken"`
	QuizAvgScore         int                `json:"quiz_avg_score"`
	TotalStudyTime       int                `json:"total_study_time"`
	SessionsAttended     int                `json:"sessions_attended"`
	DownloadsAccessed    int                `json:"downloads_accessed"`
	LastActive           time.Time          `json:"last_active"`
	CompletedLessonsList []string           `json:"completed_lessons_list"`
	WatchedVideosList    []string           `json:"watched_videos_list"`
	QuizResults          []QuizResult       `json:"quiz_results"`
	ActivityLog          []ActivityLogEntry `json:"activity_log"`
}

// NewUserStats returns an empty stats record.
func NewUserStats() *UserStats {
	return &UserStats{
		CompletedLessonsList: []string{},
		WatchedVideosList:    []string{},
		QuizResults:          []QuizResult{},
		ActivityLog:          []ActivityLogEntry{},
	}
}

// DashboardSummary backs the four dashboard summary cards.
type DashboardSummary struct {
	SessionsAttended int                `json:"sessions_attended"`
	VideosWatched    int                `json:"videos_watched"`
	LessonsCompleted int                `json:"lessons_completed"`
	QuizzesTaken     int                `json:"quizzes_taken"`
	QuizAvgScore     int                `json:"quiz_avg_score"`
	TotalStudyTime   int                `json:"total_study_time"`
	OverallProgress  int                `json:"overall_progress"`
	Recent           []ActivityLogEntry `json:"recent"`
}
