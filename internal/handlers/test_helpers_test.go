package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/BradenHooton/snipvault/internal/services"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUserContext adds the session's user to request context for testing authenticated endpoints
func WithUserContext(req *http.Request, userID int64, username string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), &models.PublicUser{ID: userID, Username: username}))
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func newLoginResult(id int64, username, token string) *services.LoginResult {
	return &services.LoginResult{
		User:      &models.PublicUser{ID: id, Username: username},
		Token:     token,
		ExpiresAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc         func(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error)
	LogoutFunc        func(ctx context.Context, token, ipAddress string) error
	SetupFunc         func(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error)
	SetupRequiredFunc func(ctx context.Context) (bool, error)
}

func (m *MockAuthService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, username, password, ipAddress, userAgent)
}

func (m *MockAuthService) Logout(ctx context.Context, token, ipAddress string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token, ipAddress)
}

func (m *MockAuthService) Setup(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.SetupFunc == nil {
		return nil, models.ErrConflict
	}
	return m.SetupFunc(ctx, username, password, ipAddress, userAgent)
}

func (m *MockAuthService) SetupRequired(ctx context.Context) (bool, error) {
	if m.SetupRequiredFunc == nil {
		return false, nil
	}
	return m.SetupRequiredFunc(ctx)
}

// MockNoteService implements NoteServiceInterface for testing
type MockNoteService struct {
	ListFunc   func(ctx context.Context, userID int64) ([]*models.DecryptedNote, error)
	GetFunc    func(ctx context.Context, userID int64, id string) (*models.DecryptedNote, error)
	CreateFunc func(ctx context.Context, userID int64, input models.NoteInput) (*models.DecryptedNote, error)
	UpdateFunc func(ctx context.Context, userID int64, id string, input models.NoteInput) (*models.DecryptedNote, error)
	DeleteFunc func(ctx context.Context, userID int64, id string) error
}

func (m *MockNoteService) List(ctx context.Context, userID int64) ([]*models.DecryptedNote, error) {
	if m.ListFunc == nil {
		return []*models.DecryptedNote{}, nil
	}
	return m.ListFunc(ctx, userID)
}

func (m *MockNoteService) Get(ctx context.Context, userID int64, id string) (*models.DecryptedNote, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, userID, id)
}

func (m *MockNoteService) Create(ctx context.Context, userID int64, input models.NoteInput) (*models.DecryptedNote, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrStoreFailure
	}
	return m.CreateFunc(ctx, userID, input)
}

func (m *MockNoteService) Update(ctx context.Context, userID int64, id string, input models.NoteInput) (*models.DecryptedNote, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, userID, id, input)
}

func (m *MockNoteService) Delete(ctx context.Context, userID int64, id string) error {
	if m.DeleteFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteFunc(ctx, userID, id)
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	HealthCheckFunc func(ctx context.Context) error
}

func (m *MockPinger) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}
