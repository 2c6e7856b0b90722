package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
)

// Pinger is the store connectivity check behind /health
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports whether the active store is reachable
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second, logger: logger}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Error("health check failed", slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "unreachable"})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}
