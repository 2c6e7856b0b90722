package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, password_hash, failed_login_attempts, locked_until, last_login, created_at, updated_at`

type UserRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedUntil, lastLogin *time.Time

	err := scanner.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FailedLoginAttempts,
		&lockedUntil, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.LockedUntil = lockedUntil
	user.LastLogin = lastLogin

	return &user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUserRow(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, database.MapPostgresError("users.find_by_username", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, database.MapPostgresError("users.create", err)
	}

	return created, nil
}

// CreateFirst inserts user only while the table is empty. The table lock
// serialises concurrent first-run setups.
func (r *UserRepository) CreateFirst(ctx context.Context, user *models.User) (*models.User, error) {
	var created *models.User

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}

		var count int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return models.ErrConflict
		}

		query := `
			INSERT INTO users (username, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			RETURNING ` + userColumns

		u, err := scanUserRow(tx.QueryRow(ctx, query,
			user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
		))
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, database.MapPostgresError("users.create_first", err)
	}

	return created, nil
}

// UpdateLoginState persists the lockout counters. A nil LastLogin keeps the stored value.
func (r *UserRepository) UpdateLoginState(ctx context.Context, id int64, state models.LoginState) error {
	query := `
		UPDATE users
		SET failed_login_attempts = $1,
		    locked_until = $2,
		    last_login = COALESCE($3::timestamptz, last_login),
		    updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, state.FailedAttempts, state.LockedUntil, state.LastLogin, id)
	if err != nil {
		return database.MapPostgresError("users.update_login_state", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, database.MapPostgresError("users.count", err)
	}
	return count, nil
}
