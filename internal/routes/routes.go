package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/handlers"
	middlewareCustom "github.com/BradenHooton/snipvault/internal/middleware"
	"github.com/BradenHooton/snipvault/internal/ratelimit"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds the request guard settings
type Config struct {
	Env                 string
	AllowedOrigins      []string
	GeneralPolicy       ratelimit.Policy
	AuthPolicy          ratelimit.Policy
	NoteWritesPerMinute int
}

// Dependencies are the handlers and collaborators the router wires together
type Dependencies struct {
	AuthHandler   *handlers.AuthHandler
	NoteHandler   *handlers.NoteHandler
	HealthHandler *handlers.HealthHandler
	Sessions      auth.SessionVerifier
	RateLimits    ratelimit.Store
	Logger        *slog.Logger
	AuditLogger   *pkglogger.AuditLogger
}

// NewRouter builds the full middleware chain and registers every route.
// Security headers are stamped first so every exit path carries them.
func NewRouter(cfg Config, deps Dependencies) chi.Router {
	router := chi.NewRouter()
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Env}))
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(deps.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.CORS(middlewareCustom.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	router.Get("/health", deps.HealthHandler.Health)
	router.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, cfg, deps)
	})

	return router
}

// RegisterRoutes registers the API routes: rate limit first, then session,
// then the owner-scoped handler.
func RegisterRoutes(router chi.Router, cfg Config, deps Dependencies) {
	router.Use(middlewareCustom.RateLimit(deps.RateLimits, cfg.GeneralPolicy, deps.Logger, deps.AuditLogger))

	authLimit := middlewareCustom.RateLimit(deps.RateLimits, cfg.AuthPolicy, deps.Logger, deps.AuditLogger)
	writeLimit := middlewareCustom.RateLimitByUserID(middlewareCustom.UserRateLimitConfig{
		WriteOperationsPerMinute: cfg.NoteWritesPerMinute,
	})

	// Public routes - credential endpoints share the strict auth bucket
	router.With(authLimit).Post("/auth/login", deps.AuthHandler.Login)
	router.With(authLimit).Post("/auth/setup", deps.AuthHandler.Setup)
	router.Get("/auth/setup", deps.AuthHandler.SetupStatus)
	router.Post("/auth/logout", deps.AuthHandler.Logout)

	// Protected routes - session required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(deps.Sessions, deps.Logger))

		r.Get("/auth/session", deps.AuthHandler.Session)

		r.Get("/notes", deps.NoteHandler.List)
		r.Get("/notes/{id}", deps.NoteHandler.Get)
		r.With(writeLimit).Post("/notes", deps.NoteHandler.Create)
		r.With(writeLimit).Put("/notes/{id}", deps.NoteHandler.Update)
		r.With(writeLimit).Delete("/notes/{id}", deps.NoteHandler.Delete)
	})
}
