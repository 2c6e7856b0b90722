//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/config"
	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/handlers"
	"github.com/BradenHooton/snipvault/internal/ratelimit"
	"github.com/BradenHooton/snipvault/internal/routes"
	"github.com/BradenHooton/snipvault/internal/services"
	"github.com/BradenHooton/snipvault/pkg/crypto"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
)

// testEncryptionKey is a fixed 32-byte key in hex
const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// TestServer wraps httptest.Server with the postgres stores and every dependency
type TestServer struct {
	Server      *httptest.Server
	DB          *database.DB
	Config      *config.Config
	AuthService *services.AuthService
}

// NewTestServer initializes a complete HTTP server backed by the postgres
// repositories and the given rate limit store
func NewTestServer(db *database.DB, rateLimits ratelimit.Store) (*TestServer, error) {
	logger := discardLogger()

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		Auth: config.AuthConfig{
			SessionTTL:      24 * time.Hour,
			MaxFailedLogins: 5,
			LockoutDuration: 15 * time.Minute,
		},
		RateLimit: config.RateLimitConfig{
			GeneralMax:          100,
			AuthMax:             5,
			Window:              15 * time.Minute,
			NoteWritesPerMinute: 30,
		},
		Crypto: config.CryptoConfig{EncryptionKey: testEncryptionKey},
	}

	key, err := crypto.DeriveKey(cfg.Crypto.EncryptionKey)
	if err != nil {
		return nil, err
	}

	repos := InitializeRepositories(db)
	auditLogger := pkglogger.NewAuditLogger(logger)

	authService := services.NewAuthService(repos.Users, repos.Sessions, nil, services.AuthConfig{
		SessionTTL:      cfg.Auth.SessionTTL,
		MaxFailedLogins: cfg.Auth.MaxFailedLogins,
		LockoutDuration: cfg.Auth.LockoutDuration,
	}, logger, auditLogger)
	noteService := services.NewNoteService(repos.Notes, key, logger)

	router := routes.NewRouter(routes.Config{
		Env:                 cfg.Server.Env,
		GeneralPolicy:       ratelimit.General(cfg.RateLimit.GeneralMax, cfg.RateLimit.Window),
		AuthPolicy:          ratelimit.Auth(cfg.RateLimit.AuthMax, cfg.RateLimit.Window),
		NoteWritesPerMinute: cfg.RateLimit.NoteWritesPerMinute,
	}, routes.Dependencies{
		AuthHandler:   handlers.NewAuthHandler(authService, auth.SessionCookieConfig(false), cfg.Auth.SessionTTL, logger),
		NoteHandler:   handlers.NewNoteHandler(noteService, logger),
		HealthHandler: handlers.NewHealthHandler(db, logger),
		Sessions:      authService,
		RateLimits:    rateLimits,
		Logger:        logger,
		AuditLogger:   auditLogger,
	})

	return &TestServer{
		Server:      httptest.NewServer(router),
		DB:          db,
		Config:      cfg,
		AuthService: authService,
	}, nil
}

// Close shuts down the HTTP server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// Client is a cookie-carrying API client bound to one client address
type Client struct {
	t    *testing.T
	base string
	ip   string
	http *http.Client
}

// NewClient returns a client with its own cookie jar
func (ts *TestServer) NewClient(t *testing.T, ip string) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &Client{
		t:    t,
		base: ts.Server.URL,
		ip:   ip,
		http: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}
}

// Do sends a JSON request and decodes a JSON response into out when non-nil
func (c *Client) Do(method, path string, body, out interface{}) *http.Response {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", c.ip)

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("failed to decode response %q: %v", data, err)
		}
	}
	return resp
}

// Login posts credentials and returns the response status
func (c *Client) Login(username, password string) int {
	c.t.Helper()
	resp := c.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	return resp.StatusCode
}
