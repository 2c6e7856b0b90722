package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/BradenHooton/snipvault/internal/services"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error)
	Logout(ctx context.Context, token, ipAddress string) error
	Setup(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error)
	SetupRequired(ctx context.Context) (bool, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	cookieConfig auth.CookieConfig
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookieConfig auth.CookieConfig, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		cookieConfig: cookieConfig,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,max=1024"`
}

// SetupRequest represents the request body for first-run setup
type SetupRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Response DTOs

// SessionResponse describes the session the caller now holds
type SessionResponse struct {
	User      *models.PublicUser `json:"user"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// SetupStatusResponse reports whether the owner account still has to be created
type SetupStatusResponse struct {
	SetupRequired bool `json:"setup_required"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password,
		pkghttp.ClientIdentity(r), pkghttp.UserAgent(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.startSession(w, http.StatusOK, result)
}

// Logout deletes the caller's session if there is one and always clears
// the cookie. A missing, expired or already revoked session is not an error.
// @Summary User logout
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.GetSessionToken(r)

	if err := h.service.Logout(r.Context(), token, pkghttp.ClientIdentity(r)); err != nil {
		h.logger.Error("failed to revoke session on logout",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	auth.ClearSessionCookie(w, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Session returns the user bound to the caller's session
// @Summary Current session
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{User: user})
}

// SetupStatus reports whether first-run setup is still open
// @Summary Setup status
// @Produce json
// @Success 200 {object} SetupStatusResponse
// @Router /auth/setup [get]
func (h *AuthHandler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	required, err := h.service.SetupRequired(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SetupStatusResponse{SetupRequired: required})
}

// Setup creates the owner account on an empty install and logs it in
// @Summary First-run setup
// @Accept json
// @Param request body SetupRequest true "Setup request"
// @Produce json
// @Success 201 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/setup [post]
func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Setup(r.Context(), req.Username, req.Password,
		pkghttp.ClientIdentity(r), pkghttp.UserAgent(r))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "Setup has already been completed")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.startSession(w, http.StatusCreated, result)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, result *services.LoginResult) {
	auth.SetSessionCookie(w, result.Token, h.sessionTTL, h.cookieConfig)
	pkghttp.WriteJSON(w, status, SessionResponse{
		User:      result.User,
		ExpiresAt: &result.ExpiresAt,
	})
}
