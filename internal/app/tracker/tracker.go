// Package tracker records per-user learning activity for the dashboard and
// forwards completions to the rewards ledger.
package tracker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/domain"
)

// DefaultRecentLimit is the activity-table length when none is given.
const DefaultRecentLimit = 10

// Progress targets and weights for the overall dashboard percentage.
const (
	targetLessons = 9
	targetVideos  = 9
	targetQuizzes = 3

	weightLessons = 0.4
	weightVideos  = 0.3
	weightQuizzes = 0.3
)

// Lesson identifies a lesson page.
type Lesson struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// Video identifies a watched video.
type Video struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
	NoSkip  bool   `json:"no_skip"`
}

// Quiz is one finished quiz attempt.
type Quiz struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Subject        string `json:"subject"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
}

// Service tracks activity stats. Writes are serialized.
type Service struct {
	stats   domain.StatsStore
	rewards domain.RewardRecorder
	now     func() time.Time
	mu      sync.Mutex
}

// NewService creates a tracker. rewards may be nil.
func NewService(stats domain.StatsStore, rewards domain.RewardRecorder) *Service {
	return &Service{stats: stats, rewards: rewards, now: time.Now}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ─── Tracking ───────────────────────────────────────────────────────────────

// LessonStarted counts a lesson start once, unless it was already completed.
func (s *Service) LessonStarted(ctx context.Context, userID string, l Lesson) (bool, error) {
	counted := false
	err := s.update(ctx, userID, func(st *domain.UserStats, now time.Time) {
		if contains(st.CompletedLessonsList, l.ID) || startedLesson(st, l) {
			return
		}
		st.LessonsStarted++
		st.ActivityLog = append(st.ActivityLog, domain.ActivityLogEntry{
			Type: "lesson", Action: "started", Title: l.Title, Subject: l.Subject, Timestamp: now,
		})
		counted = true
	})
	return counted, err
}

// LessonCompleted counts a lesson once and awards lesson points.
func (s *Service) LessonCompleted(ctx context.Context, userID string, l Lesson) (*domain.AwardOutcome, error) {
	counted := false
	err := s.update(ctx, userID, func(st *domain.UserStats, now time.Time) {
		if contains(st.CompletedLessonsList, l.ID) {
			return
		}
		st.LessonsCompleted++
		st.CompletedLessonsList = append(st.CompletedLessonsList, l.ID)
		st.ActivityLog = append(st.ActivityLog, domain.ActivityLogEntry{
			Type: "lesson", Action: "completed", Title: l.Title, Subject: l.Subject, Timestamp: now,
		})
		counted = true
	})
	if err != nil || !counted {
		return nil, err
	}
	out, err := s.forward(ctx, userID, domain.EventLessonCompleted, domain.ActivityMeta{
		Category: l.Subject,
		Topic:    domain.TopicForSubject(l.Subject),
	})
	if err != nil {
		s.rollback(ctx, userID, func(st *domain.UserStats) {
			if i := index(st.CompletedLessonsList, l.ID); i >= 0 {
				st.CompletedLessonsList = append(st.CompletedLessonsList[:i], st.CompletedLessonsList[i+1:]...)
				st.LessonsCompleted--
				st.ActivityLog = dropLastEntry(st.ActivityLog, "lesson", "completed", l.Title)
			}
		})
		return nil, err
	}
	return out, nil
}

// VideoWatched counts a video once and awards video points.
func (s *Service) VideoWatched(ctx context.Context, userID string, v Video) (*domain.AwardOutcome, error) {
	counted := false
	err := s.update(ctx, userID, func(st *domain.UserStats, now time.Time) {
		if contains(st.WatchedVideosList, v.ID) {
			return
		}
		st.VideosWatched++
		st.WatchedVideosList = append(st.WatchedVideosList, v.ID)
		st.ActivityLog = append(st.ActivityLog, domain.ActivityLogEntry{
			Type: "video", Action: "watched", Title: v.Title, Subject: v.Subject, Timestamp: now,
		})
		counted = true
	})
	if err != nil || !counted {
		return nil, err
	}
	out, err := s.forward(ctx, userID, domain.EventVideoWatched, domain.ActivityMeta{
		NoSkip:   v.NoSkip,
		Category: v.Subject,
		Topic:    domain.TopicForSubject(v.Subject),
	})
	if err != nil {
		s.rollback(ctx, userID, func(st *domain.UserStats) {
			if i := index(st.WatchedVideosList, v.ID); i >= 0 {
				st.WatchedVideosList = append(st.WatchedVideosList[:i], st.WatchedVideosList[i+1:]...)
				st.VideosWatched--
				st.ActivityLog = dropLastEntry(st.ActivityLog, "video", "watched", v.Title)
			}
		})
		return nil, err
	}
	return out, nil
}

// QuizCompleted records an attempt, recomputes the average and awards quiz points.
// Every attempt counts, including retakes.
func (s *Service) QuizCompleted(ctx context.Context, userID string, q Quiz) (*domain.AwardOutcome, error) {
	if q.Score < 0 || q.Score > 100 {
		return nil, fmt.Errorf("%w: score must be 0-100", domain.ErrInvalidInput)
	}
	err := s.update(ctx, userID, func(st *domain.UserStats, now time.Time) {
		st.QuizResults = append(st.QuizResults, domain.QuizResult{
			QuizID: q.ID, Title: q.Title, Score: q.Score, TotalQuestions: q.TotalQuestions, Timestamp: now,
		})
		st.QuizzesTaken++
		st.QuizAvgScore = averageScore(st.QuizResults)
		score := q.Score
		st.ActivityLog = append(st.ActivityLog, domain.ActivityLogEntry{
			Type: "quiz", Action: "completed", Title: q.Title, Subject: q.Subject, Score: &score, Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	score := q.Score
	return s.forward(ctx, userID, domain.EventQuizCompleted, domain.ActivityMeta{
		Score:    &score,
		Category: q.Subject,
		Topic:    domain.TopicForSubject(q.Subject),
	})
}

// Download records an accessed download.
func (s *Service) Download(ctx context.Context, userID, title string) error {
	return s.update(ctx, userID, func(st *domain.UserStats, now time.Time) {
		st.DownloadsAccessed++
		st.ActivityLog = append(st.ActivityLog, domain.ActivityLogEntry{
			Type: "download", Action: "accessed", Title: title, Timestamp: now,
		})
	})
}

// SessionAttended records a live session and its minutes as study time.
func (s *Service) SessionAttended(ctx context.Context, userID, title string, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: minutes must not be negative", domain.ErrInvalidInput)
	}
	return s.update(ctx, userID, func(st *domain.UserStats, now time.Time) {
		st.SessionsAttended++
		st.TotalStudyTime += minutes
		st.ActivityLog = append(st.ActivityLog, domain.ActivityLogEntry{
			Type: "session", Action: "attended", Title: title, Duration: minutes, Timestamp: now,
		})
	})
}

// AddStudyTime adds minutes without an activity-log entry.
func (s *Service) AddStudyTime(ctx context.Context, userID string, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: minutes must be positive", domain.ErrInvalidInput)
	}
	return s.update(ctx, userID, func(st *domain.UserStats, _ time.Time) {
		st.TotalStudyTime += minutes
	})
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Stats returns the raw stats record.
func (s *Service) Stats(ctx context.Context, userID string) (*domain.UserStats, error) {
	return s.stats.LoadStats(ctx, userID)
}

// Recent returns the newest limit log entries, newest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]domain.ActivityLogEntry, error) {
	st, err := s.stats.LoadStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return recent(st.ActivityLog, limit), nil
}

// Summary builds the dashboard cards.
func (s *Service) Summary(ctx context.Context, userID string) (*domain.DashboardSummary, error) {
	st, err := s.stats.LoadStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.DashboardSummary{
		SessionsAttended: st.SessionsAttended,
		VideosWatched:    st.VideosWatched,
		LessonsCompleted: st.LessonsCompleted,
		QuizzesTaken:     st.QuizzesTaken,
		QuizAvgScore:     st.QuizAvgScore,
		TotalStudyTime:   st.TotalStudyTime,
		OverallProgress:  OverallProgress(st),
		Recent:           recent(st.ActivityLog, DefaultRecentLimit),
	}, nil
}

// OverallProgress blends lesson, video and quiz progress into 0–100.
func OverallProgress(st *domain.UserStats) int {
	lessons := math.Min(float64(st.LessonsCompleted)/targetLessons*100, 100)
	videos := math.Min(float64(st.VideosWatched)/targetVideos*100, 100)
	quizzes := math.Min(float64(st.QuizzesTaken)/targetQuizzes*100, 100)
	return int(math.Round(lessons*weightLessons + videos*weightVideos + quizzes*weightQuizzes))
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *Service) update(ctx context.Context, userID string, fn func(*domain.UserStats, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.stats.LoadStats(ctx, userID)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	now := s.now().UTC()
	fn(st, now)
	st.LastActive = now
	if err := s.stats.SaveStats(ctx, userID, st); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// rollback undoes a dedupe entry after a failed forward so a retry is
// counted and rewarded.
func (s *Service) rollback(ctx context.Context, userID string, fn func(*domain.UserStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.stats.LoadStats(ctx, userID)
	if err == nil {
		fn(st)
		err = s.stats.SaveStats(ctx, userID, st)
	}
	if err != nil {
		log.WithFields(log.Fields{"user": userID, "error": err}).Error("tracker: rollback failed")
	}
}

// forward raises a reward event. Callers roll back deduped stats on failure.
func (s *Service) forward(ctx context.Context, userID string, event domain.RewardEventType, meta domain.ActivityMeta) (*domain.AwardOutcome, error) {
	if s.rewards == nil {
		return nil, nil
	}
	out, err := s.rewards.Record(ctx, userID, event, meta)
	if err != nil {
		log.WithFields(log.Fields{"user": userID, "event": event, "error": err}).Error("tracker: reward forward failed")
		return nil, fmt.Errorf("record %s: %w", event, err)
	}
	return out, nil
}

func startedLesson(st *domain.UserStats, l Lesson) bool {
	for _, e := range st.ActivityLog {
		if e.Type == "lesson" && e.Action == "started" && e.Title == l.Title {
			return true
		}
	}
	return false
}

func averageScore(results []domain.QuizResult) int {
	if len(results) == 0 {
		return 0
	}
	total := 0
	for _, r := range results {
		total += r.Score
	}
	return int(math.Round(float64(total) / float64(len(results))))
}

func recent(entries []domain.ActivityLogEntry, limit int) []domain.ActivityLogEntry {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	n := len(entries)
	if limit > n {
		limit = n
	}
	out := make([]domain.ActivityLogEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, entries[i])
	}
	return out
}

func contains(list []string, v string) bool {
	return index(list, v) >= 0
}

func index(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

// dropLastEntry removes the newest log entry matching typ, action and title.
func dropLastEntry(entries []domain.ActivityLogEntry, typ, action, title string) []domain.ActivityLogEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if e := entries[i]; e.Type == typ && e.Action == action && e.Title == title {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}
