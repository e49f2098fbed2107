package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"coachplanner/internal/database"
	"coachplanner/internal/domain"
	"coachplanner/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// ErrTooManyAttempts is returned by Login when the per-email limit is hit.
var ErrTooManyAttempts = fmt.Errorf("%w: too many login attempts, try again later", domain.ErrValidation)

type AuthService struct {
	repo        domain.Repository
	sessions    domain.SessionStore
	sessionTTL  time.Duration
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewAuthService(repo domain.Repository, sessions domain.SessionStore, sessionTTL time.Duration, maxAttempts int, window time.Duration, logger *zerolog.Logger) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = models.DefaultSessionTTL * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = models.LoginAttempts
	}
	if window <= 0 {
		window = models.LoginWindow * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AuthService{
		repo:        repo,
		sessions:    sessions,
		sessionTTL:  sessionTTL,
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuthService) Register(ctx context.Context, email, password, displayName, role string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, domain.ValidationError("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, domain.ValidationError("password must be at least %d characters", minPasswordLength)
	}
	if role == "" {
		role = models.RoleClient
	}
	if role != models.RoleClient && role != models.RoleCoach {
		return nil, domain.ValidationError("unknown role %q", role)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, domain.ValidationError("email already registered")
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.Info().Str("user_id", profile.ID).Str("role", profile.Role).Msg("profile registered")
	return profile, nil
}

// Login verifies the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	limitKey := "login:" + email

	limited, err := s.sessions.RateLimited(ctx, limitKey, s.maxAttempts)
	if err != nil {
		s.logger.Error().Err(err).Msg("login rate limit check failed")
	} else if limited {
		s.logger.Warn().Str("email", email).Msg("login rate limited")
		return models.Session{}, ErrTooManyAttempts
	}

	profile, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.recordFailedLogin(ctx, limitKey)
			return models.Session{}, domain.ErrUnauthorized
		}
		return models.Session{}, fmt.Errorf("%w: load profile: %v", domain.ErrTransientFetch, err)
	}
	if profile.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)) != nil {
		s.recordFailedLogin(ctx, limitKey)
		return models.Session{}, domain.ErrUnauthorized
	}

	session := models.Session{
		Token:     uuid.NewString(),
		UserID:    profile.ID,
		Email:     profile.Email,
		Role:      profile.Role,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.SetSession(ctx, &session); err != nil {
		return models.Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// recordFailedLogin counts a rejected attempt. Only failures count towards
// the lockout.
func (s *AuthService) recordFailedLogin(ctx context.Context, key string) {
	if _, err := s.sessions.CheckRateLimit(ctx, key, s.maxAttempts, s.window); err != nil {
		s.logger.Error().Err(err).Msg("failed to record login attempt")
	}
}

// Authenticate resolves a bearer token to its session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, domain.ErrUnauthorized
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: load session: %v", domain.ErrTransientFetch, err)
	}
	if session == nil || session.IsZero() {
		return models.Session{}, domain.ErrUnauthorized
	}
	if session.Expired(s.now()) {
		_ = s.sessions.ClearSession(ctx, token)
		return models.Session{}, domain.ErrUnauthorized
	}
	return *session, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.ClearSession(ctx, token); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
