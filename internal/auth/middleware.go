package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/snipvault/internal/models"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the session's user in context
	UserContextKey contextKey = "user"
)

// SessionVerifier resolves a session token to its user, or nil when the
// session is unknown or expired.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*models.PublicUser, error)
}

// RequireSession rejects requests without a live session and injects the
// session's user into the request context.
func RequireSession(verifier SessionVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetSessionToken(r)
			if token == "" {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			user, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				logger.Error("session verification failed", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}
			if user == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user *models.PublicUser) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext extracts the session's user from request context
func GetUserFromContext(r *http.Request) *models.PublicUser {
	user, ok := r.Context().Value(UserContextKey).(*models.PublicUser)
	if !ok {
		return nil
	}
	return user
}
