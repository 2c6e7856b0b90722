package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/snipvault/internal/models"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
)

// writeServiceError maps a domain error onto its fixed client response.
// Only the lockout minutes leave the process; everything else is logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var locked *models.AccountLockedError
	var invalid *models.ValidationError

	switch {
	case errors.As(err, &locked):
		pkghttp.WriteLocked(w, "Account is temporarily locked", locked.RemainingMinutes)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid username or password")
	case errors.As(err, &invalid):
		pkghttp.WriteBadRequest(w, invalid.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
