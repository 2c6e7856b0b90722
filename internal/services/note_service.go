package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/BradenHooton/snipvault/pkg/crypto"
	"github.com/google/uuid"
)

const (
	MaxTitleLength    = 255
	MaxLanguageLength = 50
	MaxContentBytes   = 1 << 20
)

// NoteRepository stores encrypted notes; every method is owner-scoped
type NoteRepository interface {
	List(ctx context.Context, userID int64) ([]*models.Note, error)
	Get(ctx context.Context, userID int64, id string) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, userID int64, id string) error
}

// NoteService encrypts note content before it reaches the store and
// decrypts it for the owner on the way out.
type NoteService struct {
	repo   NoteRepository
	key    []byte
	logger *slog.Logger
	now    func() time.Time
}

func NewNoteService(repo NoteRepository, key []byte, logger *slog.Logger) *NoteService {
	return &NoteService{
		repo:   repo,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

func (s *NoteService) List(ctx context.Context, userID int64) ([]*models.DecryptedNote, error) {
	notes, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.DecryptedNote, 0, len(notes))
	for _, note := range notes {
		decrypted, err := s.decrypt(note)
		if err != nil {
			return nil, err
		}
		out = append(out, decrypted)
	}
	return out, nil
}

func (s *NoteService) Get(ctx context.Context, userID int64, id string) (*models.DecryptedNote, error) {
	if !validNoteID(id) {
		return nil, models.ErrNotFound
	}

	note, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.decrypt(note)
}

func (s *NoteService) Create(ctx context.Context, userID int64, input models.NoteInput) (*models.DecryptedNote, error) {
	input, err := normalizeNoteInput(input)
	if err != nil {
		return nil, err
	}

	ciphertext, iv, err := crypto.Encrypt(input.Content, s.key)
	if err != nil {
		s.logger.Error("failed to encrypt note", slog.Any("error", err))
		return nil, models.NewStoreError("notes.encrypt", err)
	}

	now := s.now()
	note := &models.Note{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             input.Title,
		Language:          input.Language,
		ContentCiphertext: ciphertext,
		ContentIV:         iv,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("note created", slog.Int64("user_id", userID), slog.String("note_id", note.ID))
	return decryptedView(note, input.Content), nil
}

func (s *NoteService) Update(ctx context.Context, userID int64, id string, input models.NoteInput) (*models.DecryptedNote, error) {
	if !validNoteID(id) {
		return nil, models.ErrNotFound
	}

	input, err := normalizeNoteInput(input)
	if err != nil {
		return nil, err
	}

	ciphertext, iv, err := crypto.Encrypt(input.Content, s.key)
	if err != nil {
		s.logger.Error("failed to encrypt note", slog.Any("error", err))
		return nil, models.NewStoreError("notes.encrypt", err)
	}

	note := &models.Note{
		ID:                id,
		UserID:            userID,
		Title:             input.Title,
		Language:          input.Language,
		ContentCiphertext: ciphertext,
		ContentIV:         iv,
		UpdatedAt:         s.now(),
	}
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, err
	}

	return decryptedView(note, input.Content), nil
}

func (s *NoteService) Delete(ctx context.Context, userID int64, id string) error {
	if !validNoteID(id) {
		return models.ErrNotFound
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("note deleted", slog.Int64("user_id", userID), slog.String("note_id", id))
	return nil
}

func (s *NoteService) decrypt(note *models.Note) (*models.DecryptedNote, error) {
	content, err := crypto.Decrypt(note.ContentCiphertext, note.ContentIV, s.key)
	if err != nil {
		// Wrong key or tampered row; never return ciphertext in its place
		s.logger.Error("failed to decrypt note",
			slog.String("note_id", note.ID),
			slog.Bool("malformed", errors.Is(err, crypto.ErrMalformedInput)),
		)
		return nil, models.ErrDecryption
	}
	return decryptedView(note, content), nil
}

func decryptedView(note *models.Note, content string) *models.DecryptedNote {
	return &models.DecryptedNote{
		ID:        note.ID,
		Title:     note.Title,
		Language:  note.Language,
		Content:   content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}

func normalizeNoteInput(input models.NoteInput) (models.NoteInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Language = strings.TrimSpace(input.Language)

	switch {
	case input.Title == "":
		return input, &models.ValidationError{Field: "title", Message: "is required"}
	case utf8.RuneCountInString(input.Title) > MaxTitleLength:
		return input, &models.ValidationError{Field: "title", Message: "must be at most 255 characters"}
	case utf8.RuneCountInString(input.Language) > MaxLanguageLength:
		return input, &models.ValidationError{Field: "language", Message: "must be at most 50 characters"}
	case len(input.Content) > MaxContentBytes:
		return input, &models.ValidationError{Field: "content", Message: "is too large"}
	}
	return input, nil
}

func validNoteID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
