// Package account implements Navigate sign-up, sign-in and per-user progress.
// Passwords are bcrypt hashes; sessions are HS256 JWTs whose ids can be revoked.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/metrics"
)

const issuer = "navigate"

// Config controls token signing and password hashing.
type Config struct {
	Secret      string
	TokenTTL    time.Duration
	RememberTTL time.Duration
	BcryptCost  int
}

// Claims identifies the user and token behind an authenticated request.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// Service manages accounts and sessions.
type Service struct {
	users   domain.UserStore
	tokens  domain.TokenStore
	rewards domain.RewardRecorder
	cfg     Config
	now     func() time.Time
}

// NewService creates an account service. rewards may be nil.
func NewService(users domain.UserStore, tokens domain.TokenStore, rewards domain.RewardRecorder, cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:   users,
		tokens:  tokens,
		rewards: rewards,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ─── Sign-up / Sign-in ──────────────────────────────────────────────────────

// Signup registers a new account with an empty progress record.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
		Progress:     emptyProgress(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	metrics.Signups.Inc()
	log.WithFields(log.Fields{"user": u.ID, "username": u.Username}).Info("account: signed up")
	return u, nil
}

// Signin checks credentials, stamps lastLogin and issues a token.
// A successful sign-in also records the daily login reward.
func (s *Service) Signin(ctx context.Context, login, password string, remember bool) (*domain.Session, error) {
	u, err := s.users.GetUserByLogin(ctx, login)
	if errors.Is(err, domain.ErrUserNotFound) {
		metrics.Signins.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		metrics.Signins.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	u.LastLogin = &now
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}

	ttl := s.cfg.TokenTTL
	if remember {
		ttl = s.cfg.RememberTTL
	}
	token, expiresAt, err := s.issueToken(u.ID, now, ttl)
	if err != nil {
		return nil, err
	}
	metrics.Signins.WithLabelValues("ok").Inc()

	if s.rewards != nil {
		if _, err := s.rewards.Record(ctx, u.ID, domain.EventDailyLogin, domain.ActivityMeta{}); err != nil {
			log.WithFields(log.Fields{"user": u.ID, "error": err}).Warn("account: daily login reward failed")
		}
	}

	return &domain.Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      u,
	}, nil
}

// Logout revokes the token so it can no longer authenticate.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	return s.tokens.RevokeToken(ctx, claims.TokenID, claims.ExpiresAt)
}

// Me returns the account behind a token.
func (s *Service) Me(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, claims.UserID)
}

// User returns an account by id.
func (s *Service) User(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

func (s *Service) issueToken(userID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Authenticate validates a token's signature, expiry and revocation.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	rc, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || rc.Subject == "" || rc.ID == "" || rc.ExpiresAt == nil {
		return nil, domain.ErrTokenInvalid
	}

	revoked, err := s.tokens.IsRevoked(ctx, rc.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}

	return &Claims{UserID: rc.Subject, TokenID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}

// PurgeRevoked drops revocations of tokens that have expired anyway.
func (s *Service) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.tokens.PurgeExpiredTokens(ctx, s.now())
}

// ─── Progress ───────────────────────────────────────────────────────────────

// UpdateProgress applies one change to the account's progress record.
func (s *Service) UpdateProgress(ctx context.Context, userID string, kind domain.ProgressKind, upd domain.ProgressUpdate) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &u.Progress

	switch kind {
	case domain.ProgressLesson:
		if upd.LessonID == "" {
			return nil, fmt.Errorf("%w: lesson id required", domain.ErrInvalidInput)
		}
		if !containsString(p.CompletedLessons, upd.LessonID) {
			p.CompletedLessons = append(p.CompletedLessons, upd.LessonID)
		}
	case domain.ProgressQuiz:
		p.QuizScores = append(p.QuizScores, domain.QuizScore{
			QuizID:      upd.QuizID,
			Score:       upd.Score,
			CompletedAt: s.now().UTC(),
		})
	case domain.ProgressSession:
		p.SessionsAttended = append(p.SessionsAttended, domain.AttendedSession{
			SessionID:  upd.SessionID,
			Subject:    upd.Subject,
			Date:       upd.Date,
			AttendedAt: s.now().UTC(),
		})
	case domain.ProgressStudyTime:
		if upd.Minutes <= 0 {
			return nil, fmt.Errorf("%w: minutes must be positive", domain.ErrInvalidInput)
		}
		p.TotalStudyTime += upd.Minutes
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProgress, kind)
	}

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func emptyProgress() domain.UserProgress {
	return domain.UserProgress{
		CompletedLessons: []string{},
		QuizScores:       []domain.QuizScore{},
		SessionsAttended: []domain.AttendedSession{},
	}
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
