package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/models"
)

const sqliteNoteColumns = `id, user_id, title, language, content_ciphertext, content_iv, created_at, updated_at`

type SQLiteNoteRepository struct {
	db *database.SQLiteDB
}

func NewSQLiteNoteRepository(db *database.SQLiteDB) *SQLiteNoteRepository {
	return &SQLiteNoteRepository{db: db}
}

func scanSQLiteNoteRow(scanner rowScanner) (*models.Note, error) {
	var note models.Note
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&note.ID, &note.UserID, &note.Title, &note.Language,
		&note.ContentCiphertext, &note.ContentIV,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	note.CreatedAt = database.FromMillis(createdAt)
	note.UpdatedAt = database.FromMillis(updatedAt)
	return &note, nil
}

func (r *SQLiteNoteRepository) List(ctx context.Context, userID int64) ([]*models.Note, error) {
	query := `SELECT ` + sqliteNoteColumns + ` FROM notes WHERE user_id = ? ORDER BY updated_at DESC`

	rows, err := r.db.Conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, database.MapSQLiteError("notes.list", err)
	}
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		note, err := scanSQLiteNoteRow(rows)
		if err != nil {
			return nil, models.NewStoreError("notes.list", fmt.Errorf("failed to scan note: %w", err))
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewStoreError("notes.list", err)
	}
	return notes, nil
}

func (r *SQLiteNoteRepository) Get(ctx context.Context, userID int64, id string) (*models.Note, error) {
	query := `SELECT ` + sqliteNoteColumns + ` FROM notes WHERE id = ? AND user_id = ?`

	note, err := scanSQLiteNoteRow(r.db.Conn.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, database.MapSQLiteError("notes.get", err)
	}
	return note, nil
}

func (r *SQLiteNoteRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (id, user_id, title, language, content_ciphertext, content_iv, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		note.ID, note.UserID, note.Title, note.Language,
		note.ContentCiphertext, note.ContentIV,
		database.ToMillis(note.CreatedAt), database.ToMillis(note.UpdatedAt),
	)
	return database.MapSQLiteError("notes.create", err)
}

func (r *SQLiteNoteRepository) Update(ctx context.Context, note *models.Note) error {
	query := `
		UPDATE notes
		SET title = ?, language = ?, content_ciphertext = ?, content_iv = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING created_at
	`

	var createdAt int64
	err := r.db.Conn.QueryRowContext(ctx, query,
		note.Title, note.Language, note.ContentCiphertext, note.ContentIV, database.ToMillis(note.UpdatedAt),
		note.ID, note.UserID,
	).Scan(&createdAt)
	if err != nil {
		return database.MapSQLiteError("notes.update", err)
	}

	note.CreatedAt = database.FromMillis(createdAt)
	return nil
}

func (r *SQLiteNoteRepository) Delete(ctx context.Context, userID int64, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return database.MapSQLiteError("notes.delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return database.MapSQLiteError("notes.delete", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}
