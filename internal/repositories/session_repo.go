package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, expires_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		session.Token, session.UserID, session.ExpiresAt,
		session.IPAddress, session.UserAgent, session.CreatedAt,
	)
	return database.MapPostgresError("sessions.create", err)
}

// FindActiveUser returns the owner of a session that is still valid at now,
// or ErrNotFound for unknown and expired tokens alike.
func (r *SessionRepository) FindActiveUser(ctx context.Context, token string, now time.Time) (*models.PublicUser, error) {
	query := `
		SELECT u.id, u.username
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > $2
	`

	var user models.PublicUser
	if err := r.pool.QueryRow(ctx, query, token, now).Scan(&user.ID, &user.Username); err != nil {
		return nil, database.MapPostgresError("sessions.find_active_user", err)
	}

	return &user, nil
}

// Delete removes a session. Unknown tokens are not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return database.MapPostgresError("sessions.delete", err)
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, database.MapPostgresError("sessions.delete_expired", err)
	}
	return result.RowsAffected(), nil
}
