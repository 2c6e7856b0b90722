package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/models"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
	"github.com/go-chi/chi/v5"
)

// NoteServiceInterface defines the owner-scoped note operations
type NoteServiceInterface interface {
	List(ctx context.Context, userID int64) ([]*models.DecryptedNote, error)
	Get(ctx context.Context, userID int64, id string) (*models.DecryptedNote, error)
	Create(ctx context.Context, userID int64, input models.NoteInput) (*models.DecryptedNote, error)
	Update(ctx context.Context, userID int64, id string, input models.NoteInput) (*models.DecryptedNote, error)
	Delete(ctx context.Context, userID int64, id string) error
}

// NoteHandler serves the session owner's notes. Every route must sit behind
// auth.RequireSession.
type NoteHandler struct {
	service NoteServiceInterface
	logger  *slog.Logger
}

func NewNoteHandler(service NoteServiceInterface, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{service: service, logger: logger}
}

// NoteRequest is the body of create and update
type NoteRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Language string `json:"language" validate:"max=50"`
	Content  string `json:"content"`
}

func (req NoteRequest) input() models.NoteInput {
	return models.NoteInput{Title: req.Title, Language: req.Language, Content: req.Content}
}

// NoteListResponse wraps the owner's notes
type NoteListResponse struct {
	Notes []*models.DecryptedNote `json:"notes"`
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	note, err := h.service.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeNote(w, r)
	if !ok {
		return
	}

	note, err := h.service.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeNote(w, r)
	if !ok {
		return
	}

	note, err := h.service.Update(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) requireUser(w http.ResponseWriter, r *http.Request) (*models.PublicUser, bool) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return user, true
}

func (h *NoteHandler) decodeNote(w http.ResponseWriter, r *http.Request) (NoteRequest, bool) {
	var req NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return req, false
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return req, false
	}
	return req, true
}
