package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/snipvault/internal/models"
	pkgauth "github.com/BradenHooton/snipvault/pkg/auth"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	FindByUsernameFunc   func(ctx context.Context, username string) (*models.User, error)
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	CreateFirstFunc      func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLoginStateFunc func(ctx context.Context, id int64, state models.LoginState) error
	CountFunc            func(ctx context.Context) (int64, error)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	user.ID = 1
	return user, nil
}

func (m *MockUserRepository) CreateFirst(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFirstFunc != nil {
		return m.CreateFirstFunc(ctx, user)
	}
	user.ID = 1
	return user, nil
}

func (m *MockUserRepository) UpdateLoginState(ctx context.Context, id int64, state models.LoginState) error {
	if m.UpdateLoginStateFunc != nil {
		return m.UpdateLoginStateFunc(ctx, id, state)
	}
	return nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc         func(ctx context.Context, session *models.Session) error
	FindActiveUserFunc func(ctx context.Context, token string, now time.Time) (*models.PublicUser, error)
	DeleteFunc         func(ctx context.Context, token string) error
	DeleteExpiredFunc  func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionRepository) FindActiveUser(ctx context.Context, token string, now time.Time) (*models.PublicUser, error) {
	if m.FindActiveUserFunc != nil {
		return m.FindActiveUserFunc(ctx, token, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

// MockNoteRepository implements NoteRepository for testing
type MockNoteRepository struct {
	ListFunc   func(ctx context.Context, userID int64) ([]*models.Note, error)
	GetFunc    func(ctx context.Context, userID int64, id string) (*models.Note, error)
	CreateFunc func(ctx context.Context, note *models.Note) error
	UpdateFunc func(ctx context.Context, note *models.Note) error
	DeleteFunc func(ctx context.Context, userID int64, id string) error
}

func (m *MockNoteRepository) List(ctx context.Context, userID int64) ([]*models.Note, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return []*models.Note{}, nil
}

func (m *MockNoteRepository) Get(ctx context.Context, userID int64, id string) (*models.Note, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockNoteRepository) Create(ctx context.Context, note *models.Note) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, note)
	}
	return nil
}

func (m *MockNoteRepository) Update(ctx context.Context, note *models.Note) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, note)
	}
	return models.ErrNotFound
}

func (m *MockNoteRepository) Delete(ctx context.Context, userID int64, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return models.ErrNotFound
}

// TestPassword satisfies the password policy
const TestPassword = "Correct-Horse9"

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash returns a bcrypt hash of TestPassword, computed once per test binary
func testPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		hash, err := pkgauth.HashPassword(TestPassword)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		testHash = hash
	})
	return testHash
}

// NewTestUser creates a user whose password is TestPassword
func NewTestUser(t *testing.T, id int64, username string) *models.User {
	t.Helper()
	now := time.Now()
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: testPasswordHash(t),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthService builds an AuthService with no timing delay and a fixed clock
func newTestAuthService(users UserRepository, sessions SessionRepository, now time.Time) *AuthService {
	logger := discardLogger()
	svc := NewAuthService(users, sessions, nil, DefaultAuthConfig(), logger, pkglogger.NewAuditLogger(logger))
	svc.now = func() time.Time { return now }
	return svc
}
