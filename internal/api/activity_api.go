package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/navigate-learning/navigate/internal/app/tracker"
	"github.com/navigate-learning/navigate/internal/domain"
)

// ─── Activity ───────────────────────────────────────────────────────────────

type lessonRequest struct {
	Title   string `json:"title" validate:"required"`
	Subject string `json:"subject"`
}

func (s *Server) handleLessonStart(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if !s.decode(w, r, &req) {
		return
	}
	counted, err := s.svc.Tracker.LessonStarted(r.Context(), userID(r), tracker.Lesson{
		ID: chi.URLParam(r, "id"), Title: req.Title, Subject: req.Subject,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"counted": counted})
}

func (s *Server) handleLessonComplete(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.svc.Tracker.LessonCompleted(r.Context(), userID(r), tracker.Lesson{
		ID: chi.URLParam(r, "id"), Title: req.Title, Subject: req.Subject,
	})
	writeTracked(w, out, err)
}

type videoRequest struct {
	Title   string `json:"title" validate:"required"`
	Subject string `json:"subject"`
	NoSkip  bool   `json:"no_skip"`
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.svc.Tracker.VideoWatched(r.Context(), userID(r), tracker.Video{
		ID: chi.URLParam(r, "id"), Title: req.Title, Subject: req.Subject, NoSkip: req.NoSkip,
	})
	writeTracked(w, out, err)
}

type quizRequest struct {
	Title          string `json:"title" validate:"required"`
	Subject        string `json:"subject"`
	Score          *int   `json:"score" validate:"required,min=0,max=100"`
	TotalQuestions int    `json:"total_questions" validate:"min=0"`
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.svc.Tracker.QuizCompleted(r.Context(), userID(r), tracker.Quiz{
		ID:             chi.URLParam(r, "id"),
		Title:          req.Title,
		Subject:        req.Subject,
		Score:          *req.Score,
		TotalQuestions: req.TotalQuestions,
	})
	writeTracked(w, out, err)
}

// writeTracked reports whether an activity counted and what it earned.
func writeTracked(w http.ResponseWriter, out *domain.AwardOutcome, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counted": out != nil,
		"reward":  out,
	})
}

type downloadRequest struct {
	Title string `json:"title" validate:"required"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.Tracker.Download(r.Context(), userID(r), req.Title); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"counted": true})
}

type studyTimeRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1"`
}

func (s *Server) handleStudyTime(w http.ResponseWriter, r *http.Request) {
	var req studyTimeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.Tracker.AddStudyTime(r.Context(), userID(r), req.Minutes); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"counted": true})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := tracker.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.svc.Tracker.Recent(r.Context(), userID(r), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Tracker.Summary(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ─── Live sessions ──────────────────────────────────────────────────────────

type bookRequest struct {
	Subject string `json:"subject" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := s.svc.Booking.Book(r.Context(), domain.Booker{UserID: userID(r)}, req.Subject, req.Date, req.Time)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type guestBookRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

func (s *Server) handleGuestBooking(w http.ResponseWriter, r *http.Request) {
	var req guestBookRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := s.svc.Booking.Book(r.Context(),
		domain.Booker{GuestName: req.Name, GuestEmail: req.Email},
		req.Subject, req.Date, req.Time)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Booking.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": list})
}

type attendRequest struct {
	Minutes int `json:"minutes" validate:"min=0"`
}

func (s *Server) handleAttend(w http.ResponseWriter, r *http.Request) {
	var req attendRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := s.svc.Booking.Attend(r.Context(), userID(r), chi.URLParam(r, "id"), req.Minutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ─── Assistant ──────────────────────────────────────────────────────────────

type assistantRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

func (s *Server) handleAssistantSend(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := s.svc.Assist.Send(r.Context(), chi.URLParam(r, "conversation"), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleAssistantHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Assist.History(r.Context(), chi.URLParam(r, "conversation"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}
