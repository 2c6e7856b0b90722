package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/models"
)

type SQLiteSessionRepository struct {
	db *database.SQLiteDB
}

func NewSQLiteSessionRepository(db *database.SQLiteDB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, expires_at, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		session.Token, session.UserID, database.ToMillis(session.ExpiresAt),
		session.IPAddress, session.UserAgent, database.ToMillis(session.CreatedAt),
	)
	return database.MapSQLiteError("sessions.create", err)
}

func (r *SQLiteSessionRepository) FindActiveUser(ctx context.Context, token string, now time.Time) (*models.PublicUser, error) {
	query := `
		SELECT u.id, u.username
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?
	`

	var user models.PublicUser
	err := r.db.Conn.QueryRowContext(ctx, query, token, database.ToMillis(now)).Scan(&user.ID, &user.Username)
	if err != nil {
		return nil, database.MapSQLiteError("sessions.find_active_user", err)
	}
	return &user, nil
}

func (r *SQLiteSessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.Conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return database.MapSQLiteError("sessions.delete", err)
}

func (r *SQLiteSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, database.ToMillis(now))
	if err != nil {
		return 0, database.MapSQLiteError("sessions.delete_expired", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, database.MapSQLiteError("sessions.delete_expired", err)
	}
	return affected, nil
}
