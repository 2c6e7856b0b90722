package routes_test

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
	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/handlers"
	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/BradenHooton/snipvault/internal/ratelimit"
	"github.com/BradenHooton/snipvault/internal/repositories"
	"github.com/BradenHooton/snipvault/internal/routes"
	"github.com/BradenHooton/snipvault/internal/services"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerName     = "alice"
	ownerPassword = "Wonder-land42"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

type app struct {
	router chi.Router
	auth   *services.AuthService
}

func defaultConfig() routes.Config {
	return routes.Config{
		Env:                 "production",
		AllowedOrigins:      []string{"https://notes.example.com"},
		GeneralPolicy:       ratelimit.General(100, 15*time.Minute),
		AuthPolicy:          ratelimit.Auth(5, 15*time.Minute),
		NoteWritesPerMinute: 30,
	}
}

func newApp(t *testing.T, cfg routes.Config) *app {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger := pkglogger.NewAuditLogger(logger)

	db, err := database.OpenSQLite(database.MemoryDSN, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))

	authService := services.NewAuthService(
		repositories.NewSQLiteUserRepository(db),
		repositories.NewSQLiteSessionRepository(db),
		nil,
		services.DefaultAuthConfig(),
		logger,
		auditLogger,
	)
	noteService := services.NewNoteService(repositories.NewSQLiteNoteRepository(db), testKey, logger)

	router := routes.NewRouter(cfg, routes.Dependencies{
		AuthHandler:   handlers.NewAuthHandler(authService, auth.SessionCookieConfig(true), 24*time.Hour, logger),
		NoteHandler:   handlers.NewNoteHandler(noteService, logger),
		HealthHandler: handlers.NewHealthHandler(db, logger),
		Sessions:      authService,
		RateLimits:    ratelimit.NewMemoryStore(0),
		Logger:        logger,
		AuditLogger:   auditLogger,
	})

	return &app{router: router, auth: authService}
}

func (a *app) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie, ip string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *app) login(t *testing.T, ip string) *http.Cookie {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": ownerName, "password": ownerPassword}, nil, ip)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func assertSecurityHeaders(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, w.Header().Get("Referrer-Policy"))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRouter_SecurityHeadersOnEveryPath(t *testing.T) {
	a := newApp(t, defaultConfig())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"setup status", http.MethodGet, "/api/auth/setup", http.StatusOK},
		{"no session", http.MethodGet, "/api/notes", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/auth/login", http.StatusMethodNotAllowed},
		{"bad body", http.MethodPost, "/api/auth/login", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, tt.method, tt.path, nil, nil, "198.51.100.1")

			assert.Equal(t, tt.status, w.Code)
			assertSecurityHeaders(t, w)
		})
	}
}

func TestRouter_RateLimitBeforeSession(t *testing.T) {
	cfg := defaultConfig()
	cfg.GeneralPolicy = ratelimit.General(2, 15*time.Minute)
	a := newApp(t, cfg)

	for i := 0; i < 2; i++ {
		w := a.do(t, http.MethodGet, "/api/notes", nil, nil, "203.0.113.9")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := a.do(t, http.MethodGet, "/api/notes", nil, nil, "203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", errorCode(t, w).Message)
	assertSecurityHeaders(t, w)

	// another client is unaffected
	w = a.do(t, http.MethodGet, "/api/notes", nil, nil, "203.0.113.10")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AuthBucketIsSeparate(t *testing.T) {
	cfg := defaultConfig()
	cfg.AuthPolicy = ratelimit.Auth(2, 15*time.Minute)
	a := newApp(t, cfg)

	creds := map[string]string{"username": "nobody", "password": "wrong-password"}
	for i := 0; i < 2; i++ {
		w := a.do(t, http.MethodPost, "/api/auth/login", creds, nil, "203.0.113.20")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := a.do(t, http.MethodPost, "/api/auth/login", creds, nil, "203.0.113.20")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// the general bucket still has room for the same client
	w = a.do(t, http.MethodGet, "/api/auth/setup", nil, nil, "203.0.113.20")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_SetupLoginNotesLogout(t *testing.T) {
	a := newApp(t, defaultConfig())
	ip := "192.0.2.10"

	w := a.do(t, http.MethodGet, "/api/auth/setup", nil, nil, ip)
	assert.JSONEq(t, `{"setup_required":true}`, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/auth/setup",
		map[string]string{"username": ownerName, "password": ownerPassword}, nil, ip)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/auth/setup",
		map[string]string{"username": "mallory", "password": ownerPassword}, nil, ip)
	assert.Equal(t, http.StatusConflict, w.Code)

	cookie := a.login(t, ip)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 86400, cookie.MaxAge)

	w = a.do(t, http.MethodGet, "/api/auth/session", nil, cookie, ip)
	require.Equal(t, http.StatusOK, w.Code)
	var session handlers.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, ownerName, session.User.Username)

	w = a.do(t, http.MethodPost, "/api/notes",
		handlers.NoteRequest{Title: "hello", Language: "go", Content: "fmt.Println(\"hi\")"}, cookie, ip)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.DecryptedNote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = a.do(t, http.MethodPut, "/api/notes/"+created.ID,
		handlers.NoteRequest{Title: "hello again", Content: "updated"}, cookie, ip)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/notes/"+created.ID, nil, cookie, ip)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.DecryptedNote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, "updated", fetched.Content)
	assert.Equal(t, "hello again", fetched.Title)

	w = a.do(t, http.MethodGet, "/api/notes", nil, cookie, ip)
	require.Equal(t, http.StatusOK, w.Code)
	var list handlers.NoteListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Notes, 1)

	w = a.do(t, http.MethodDelete, "/api/notes/"+created.ID, nil, cookie, ip)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodGet, "/api/notes/"+created.ID, nil, cookie, ip)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/auth/logout", nil, cookie, ip)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/auth/session", nil, cookie, ip)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication required", errorCode(t, w).Message)
}

func TestRouter_LogoutIsIdempotent(t *testing.T) {
	a := newApp(t, defaultConfig())
	ip := "192.0.2.11"

	_, err := a.auth.CreateUser(context.Background(), ownerName, ownerPassword)
	require.NoError(t, err)
	cookie := a.login(t, ip)

	for i, c := range []*http.Cookie{cookie, cookie, nil} {
		w := a.do(t, http.MethodPost, "/api/auth/logout", nil, c, ip)
		require.Equal(t, http.StatusOK, w.Code, "logout %d: %s", i, w.Body.String())
		assertSecurityHeaders(t, w)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

		var cleared *http.Cookie
		for _, rc := range w.Result().Cookies() {
			if rc.Name == auth.SessionCookieName {
				cleared = rc
			}
		}
		require.NotNil(t, cleared, "logout %d did not clear the cookie", i)
		assert.Empty(t, cleared.Value)
		assert.Less(t, cleared.MaxAge, 0)
	}

	w := a.do(t, http.MethodGet, "/api/auth/session", nil, cookie, ip)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Lockout(t *testing.T) {
	cfg := defaultConfig()
	cfg.AuthPolicy = ratelimit.Auth(20, 15*time.Minute)
	a := newApp(t, cfg)
	ip := "192.0.2.30"

	_, err := a.auth.CreateUser(context.Background(), ownerName, ownerPassword)
	require.NoError(t, err)

	bad := map[string]string{"username": ownerName, "password": "Not-the-password1"}
	for i := 0; i < 5; i++ {
		w := a.do(t, http.MethodPost, "/api/auth/login", bad, nil, ip)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid username or password", errorCode(t, w).Message)
	}

	good := map[string]string{"username": ownerName, "password": ownerPassword}
	w := a.do(t, http.MethodPost, "/api/auth/login", good, nil, ip)
	require.Equal(t, http.StatusLocked, w.Code)

	resp := errorCode(t, w)
	assert.Equal(t, "account_locked", resp.Error)
	assert.Equal(t, 15, resp.RetryAfterMinutes)
	assertSecurityHeaders(t, w)
}

func TestRouter_ForgedCookieRejected(t *testing.T) {
	a := newApp(t, defaultConfig())

	forged := &http.Cookie{Name: auth.SessionCookieName, Value: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"}
	w := a.do(t, http.MethodGet, "/api/notes", nil, forged, "192.0.2.40")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	a := newApp(t, defaultConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "https://notes.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://notes.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assertSecurityHeaders(t, w)
}
