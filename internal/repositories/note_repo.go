package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const noteColumns = `id::text, user_id, title, language, content_ciphertext, content_iv, created_at, updated_at`

// NoteRepository stores encrypted notes. Every query is scoped by owner.
type NoteRepository struct {
	pool *pgxpool.Pool
}

func NewNoteRepository(db *database.DB) *NoteRepository {
	return &NoteRepository{pool: db.Pool}
}

func scanNoteRow(scanner rowScanner) (*models.Note, error) {
	var note models.Note
	err := scanner.Scan(
		&note.ID, &note.UserID, &note.Title, &note.Language,
		&note.ContentCiphertext, &note.ContentIV,
		&note.CreatedAt, &note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func scanNoteRows(rows pgx.Rows) ([]*models.Note, error) {
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		note, err := scanNoteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return notes, nil
}

func (r *NoteRepository) List(ctx context.Context, userID int64) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = $1 ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError("notes.list", err)
	}

	notes, err := scanNoteRows(rows)
	if err != nil {
		return nil, models.NewStoreError("notes.list", err)
	}
	return notes, nil
}

func (r *NoteRepository) Get(ctx context.Context, userID int64, id string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1::uuid AND user_id = $2`

	note, err := scanNoteRow(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, database.MapPostgresError("notes.get", err)
	}
	return note, nil
}

func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (id, user_id, title, language, content_ciphertext, content_iv, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		note.ID, note.UserID, note.Title, note.Language,
		note.ContentCiphertext, note.ContentIV, note.CreatedAt, note.UpdatedAt,
	)
	return database.MapPostgresError("notes.create", err)
}

// Update replaces the mutable fields of a note owned by note.UserID
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	query := `
		UPDATE notes
		SET title = $1, language = $2, content_ciphertext = $3, content_iv = $4, updated_at = $5
		WHERE id = $6::uuid AND user_id = $7
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		note.Title, note.Language, note.ContentCiphertext, note.ContentIV, note.UpdatedAt,
		note.ID, note.UserID,
	).Scan(&note.CreatedAt)
	return database.MapPostgresError("notes.update", err)
}

func (r *NoteRepository) Delete(ctx context.Context, userID int64, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1::uuid AND user_id = $2`, id, userID)
	if err != nil {
		return database.MapPostgresError("notes.delete", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
