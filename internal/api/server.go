// Package api provides the HTTP server for Navigate.
// It exposes the rewards ledger, accounts, activity tracking, live-session
// booking and the help assistant as a JSON API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/app/account"
	"github.com/navigate-learning/navigate/internal/app/assist"
	"github.com/navigate-learning/navigate/internal/app/booking"
	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/app/tracker"
	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/health"
)

// Version is reported by /api/version.
var Version = "0.1.0"

// Services are the application services the API serves.
type Services struct {
	Accounts *account.Service
	Ledger   *rewards.Ledger
	Tracker  *tracker.Service
	Booking  *booking.Service
	Assist   *assist.Service
	Health   *health.Checker
}

// Server is the Navigate HTTP API server.
type Server struct {
	svc            Services
	validate       *validator.Validate
	metricsEnabled bool
	timeout        time.Duration
}

// NewServer creates a new API server.
func NewServer(svc Services) *Server {
	return &Server{
		svc:      svc,
		validate: validator.New(),
		timeout:  30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"version": Version,
			})
		})

		// SSE must not be cut by the request timeout.
		r.With(s.requireAuth).Get("/rewards/live", s.handleRewardsLive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))

			// Public
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/signin", s.handleSignin)
			r.Get("/rewards/store", s.handleStore)
			r.Get("/rewards/tiers", s.handleTiers)
			r.Get("/rewards/achievements", s.handleAchievements)
			r.Post("/assistant/{conversation}", s.handleAssistantSend)
			r.Get("/assistant/{conversation}", s.handleAssistantHistory)
			r.Post("/sessions/guest", s.handleGuestBooking)

			// Authenticated
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)

				r.Post("/auth/logout", s.handleLogout)
				r.Get("/auth/me", s.handleMe)

				r.Get("/rewards", s.handleRewards)
				r.Get("/rewards/history", s.handleHistory)
				r.Post("/rewards/events", s.handleRewardEvent)
				r.Post("/rewards/redeem", s.handleRedeem)

				r.Post("/activity/lessons/{id}/start", s.handleLessonStart)
				r.Post("/activity/lessons/{id}/complete", s.handleLessonComplete)
				r.Post("/activity/videos/{id}", s.handleVideo)
				r.Post("/activity/quizzes/{id}", s.handleQuiz)
				r.Post("/activity/downloads", s.handleDownload)
				r.Post("/activity/studytime", s.handleStudyTime)
				r.Get("/activity/recent", s.handleRecent)
				r.Get("/dashboard", s.handleDashboard)

				r.Post("/sessions", s.handleBook)
				r.Get("/sessions", s.handleListBookings)
				r.Post("/sessions/{id}/attend", s.handleAttend)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.svc.Health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.svc.Health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	}
	return "error"
}

// writeServiceError maps a domain error onto an HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownActivity),
		errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, domain.ErrUnknownProgress),
		errors.Is(err, domain.ErrInvalidSubject),
		errors.Is(err, domain.ErrPastDate),
		errors.Is(err, domain.ErrGuestFutureBooking),
		errors.Is(err, domain.ErrGuestDetails):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("api: internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return false
	}
	return true
}

// corsMiddleware adds CORS headers for the browser front end.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("api: request")
	})
}
