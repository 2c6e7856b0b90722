package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/models"
	pkgauth "github.com/BradenHooton/snipvault/pkg/auth"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
)

// UserRepository is the credential store
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	CreateFirst(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLoginState(ctx context.Context, id int64, state models.LoginState) error
	Count(ctx context.Context) (int64, error)
}

// SessionRepository is the session store
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindActiveUser(ctx context.Context, token string, now time.Time) (*models.PublicUser, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthConfig holds the session and lockout policy
type AuthConfig struct {
	SessionTTL      time.Duration
	MaxFailedLogins int
	LockoutDuration time.Duration
}

// DefaultAuthConfig returns a 24h session with 5 failures locking for 15 minutes
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SessionTTL:      24 * time.Hour,
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
	}
}

// AuthService handles authentication business logic
type AuthService struct {
	users       UserRepository
	sessions    SessionRepository
	timingDelay *auth.TimingDelay
	config      AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService. timingDelay may be nil.
func NewAuthService(
	users UserRepository,
	sessions SessionRepository,
	timingDelay *auth.TimingDelay,
	config AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		timingDelay: timingDelay,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// LoginResult is returned by a successful login. Token goes in the cookie, not the body.
type LoginResult struct {
	User      *models.PublicUser `json:"user"`
	Token     string             `json:"-"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// Login verifies credentials, applies the lockout policy and opens a session
func (s *AuthService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*LoginResult, error) {
	start := time.Now()

	if err := validateLoginInput(username, password); err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a comparison so unknown usernames cost the same as wrong passwords
			pkgauth.CompareDummyPassword(password)
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     pkglogger.EventLoginFailure,
				IPAddress:     ipAddress,
				UserAgent:     userAgent,
				FailureReason: "invalid_credentials",
			})
			s.waitFrom(start)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, err
	}

	now := s.now()

	if user.IsLocked(now) {
		remaining := remainingMinutes(*user.LockedUntil, now)
		s.logger.Info("login blocked: account locked",
			slog.Int64("user_id", user.ID),
			slog.Int("remaining_minutes", remaining))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailure,
			UserID:        user.ID,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: "account_locked",
		})
		return nil, &models.AccountLockedError{RemainingMinutes: remaining}
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.recordFailure(ctx, user, now, ipAddress, userAgent, start)
	}

	if err := s.users.UpdateLoginState(ctx, user.ID, models.LoginState{
		FailedAttempts: 0,
		LockedUntil:    nil,
		LastLogin:      &now,
	}); err != nil {
		s.logger.Error("failed to reset login state", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	result, err := s.openSession(ctx, user.Public(), now, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return result, nil
}

// recordFailure increments the failure counter and locks the account once it
// reaches the configured maximum. The counter is only cleared by a later success.
func (s *AuthService) recordFailure(ctx context.Context, user *models.User, now time.Time, ipAddress, userAgent string, start time.Time) error {
	attempts := user.FailedLoginAttempts + 1

	var lockedUntil *time.Time
	if attempts >= s.config.MaxFailedLogins {
		until := now.Add(s.config.LockoutDuration)
		lockedUntil = &until
	}

	if err := s.users.UpdateLoginState(ctx, user.ID, models.LoginState{
		FailedAttempts: attempts,
		LockedUntil:    lockedUntil,
	}); err != nil {
		s.logger.Error("failed to record failed login", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailure,
		UserID:        user.ID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		FailureReason: "invalid_credentials",
	})

	if lockedUntil != nil {
		s.logger.Warn("account locked after repeated failures",
			slog.Int64("user_id", user.ID),
			slog.Int("failed_attempts", attempts))
		s.auditLogger.LogAccountAction(pkglogger.EventAccountLocked, user.ID, ipAddress, map[string]string{
			"locked_until": lockedUntil.UTC().Format(time.RFC3339),
		})
	}

	s.waitFrom(start)
	return models.ErrInvalidCredentials
}

func (s *AuthService) openSession(ctx context.Context, user *models.PublicUser, now time.Time, ipAddress, userAgent string) (*LoginResult, error) {
	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, models.NewStoreError("sessions.generate_token", err)
	}

	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.SessionTTL),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("failed to create session", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// VerifySession returns the session's user, or nil for an empty, unknown or
// expired token. It never extends the session.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*models.PublicUser, error) {
	if token == "" {
		return nil, nil
	}

	user, err := s.sessions.FindActiveUser(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		s.logger.Error("failed to verify session", slog.Any("error", err))
		return nil, err
	}

	return user, nil
}

// Logout deletes the session. Unknown or already deleted tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string, ipAddress string) error {
	if token == "" {
		return nil
	}

	user, err := s.VerifySession(ctx, token)
	if err != nil {
		return err
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logger.Error("failed to delete session", slog.Any("error", err))
		return err
	}

	if user != nil {
		s.auditLogger.LogAccountAction(pkglogger.EventLogout, user.ID, ipAddress, map[string]string{
			"session": pkglogger.TokenFingerprint(token),
		})
	}
	return nil
}

// CleanupExpiredSessions deletes every session that has expired.
// Safe to run repeatedly and concurrently.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	deleted, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CreateUser validates and stores a new user with a bcrypt hash
func (s *AuthService) CreateUser(ctx context.Context, username, password string) (*models.PublicUser, error) {
	user, err := s.newUser(username, password)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAccountAction(pkglogger.EventOwnerCreated, created.ID, "", nil)
	return created.Public(), nil
}

// Setup creates the first and only user while none exists, then opens a
// session for it. Returns ErrConflict once a user exists.
func (s *AuthService) Setup(ctx context.Context, username, password, ipAddress, userAgent string) (*LoginResult, error) {
	user, err := s.newUser(username, password)
	if err != nil {
		return nil, err
	}

	created, err := s.users.CreateFirst(ctx, user)
	if err != nil {
		if !errors.Is(err, models.ErrConflict) {
			s.logger.Error("failed to create first user", slog.Any("error", err))
		}
		return nil, err
	}

	s.logger.Info("owner account created via setup", slog.Int64("user_id", created.ID))
	s.auditLogger.LogAccountAction(pkglogger.EventOwnerCreated, created.ID, ipAddress, map[string]string{
		"source": "setup",
	})

	now := s.now()
	if err := s.users.UpdateLoginState(ctx, created.ID, models.LoginState{LastLogin: &now}); err != nil {
		return nil, err
	}
	return s.openSession(ctx, created.Public(), now, ipAddress, userAgent)
}

// SetupRequired reports whether no user exists yet
func (s *AuthService) SetupRequired(ctx context.Context) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// EnsureOwner creates the configured owner account unless the username is taken.
// An existing account is left untouched.
func (s *AuthService) EnsureOwner(ctx context.Context, username, password string) (bool, error) {
	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	if _, err := s.CreateUser(ctx, username, password); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AuthService) newUser(username, password string) (*models.User, error) {
	if err := pkgauth.ValidateUsername(username); err != nil {
		return nil, &models.ValidationError{Field: "username", Message: err.Error()}
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		var pwErr *pkgauth.PasswordValidationError
		if errors.As(err, &pwErr) {
			s.logger.Debug("password rejected by policy", slog.Any("reasons", pwErr.Errors))
		}
		return nil, &models.ValidationError{Field: "password", Message: "does not meet the password policy"}
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, models.NewStoreError("users.hash_password", err)
	}

	now := s.now()
	return &models.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *AuthService) waitFrom(start time.Time) {
	if s.timingDelay != nil {
		s.timingDelay.WaitFrom(start, false)
	}
}

func validateLoginInput(username, password string) error {
	if username == "" {
		return &models.ValidationError{Field: "username", Message: "is required"}
	}
	if err := pkgauth.ValidateUsername(username); err != nil {
		return &models.ValidationError{Field: "username", Message: err.Error()}
	}
	if password == "" {
		return &models.ValidationError{Field: "password", Message: "is required"}
	}
	return nil
}

// remainingMinutes rounds the time left on a lock up to whole minutes
func remainingMinutes(lockedUntil, now time.Time) int {
	minutes := int(math.Ceil(lockedUntil.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
