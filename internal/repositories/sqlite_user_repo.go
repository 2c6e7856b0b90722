package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/models"
)

// SQLiteUserRepository is the credential store for DB_DRIVER=sqlite
type SQLiteUserRepository struct {
	db *database.SQLiteDB
}

func NewSQLiteUserRepository(db *database.SQLiteDB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func scanSQLiteUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedUntil, lastLogin sql.NullInt64
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FailedLoginAttempts,
		&lockedUntil, &lastLogin,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.LockedUntil = database.TimeFromNull(lockedUntil)
	user.LastLogin = database.TimeFromNull(lastLogin)
	user.CreatedAt = database.FromMillis(createdAt)
	user.UpdatedAt = database.FromMillis(updatedAt)

	return &user, nil
}

func (r *SQLiteUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	user, err := scanSQLiteUserRow(r.db.Conn.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, database.MapSQLiteError("users.find_by_username", err)
	}
	return user, nil
}

const sqliteInsertUser = `
	INSERT INTO users (username, password_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	RETURNING ` + userColumns

func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	created, err := scanSQLiteUserRow(r.db.Conn.QueryRowContext(ctx, sqliteInsertUser,
		user.Username, user.PasswordHash, database.ToMillis(user.CreatedAt), database.ToMillis(user.UpdatedAt),
	))
	if err != nil {
		return nil, database.MapSQLiteError("users.create", err)
	}
	return created, nil
}

// CreateFirst inserts user only while the table is empty
func (r *SQLiteUserRepository) CreateFirst(ctx context.Context, user *models.User) (*models.User, error) {
	var created *models.User

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return models.ErrConflict
		}

		u, err := scanSQLiteUserRow(tx.QueryRowContext(ctx, sqliteInsertUser,
			user.Username, user.PasswordHash, database.ToMillis(user.CreatedAt), database.ToMillis(user.UpdatedAt),
		))
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, database.MapSQLiteError("users.create_first", err)
	}

	return created, nil
}

func (r *SQLiteUserRepository) UpdateLoginState(ctx context.Context, id int64, state models.LoginState) error {
	query := `
		UPDATE users
		SET failed_login_attempts = ?,
		    locked_until = ?,
		    last_login = COALESCE(?, last_login),
		    updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn.ExecContext(ctx, query,
		state.FailedAttempts,
		database.NullMillis(state.LockedUntil),
		database.NullMillis(state.LastLogin),
		database.ToMillis(time.Now()),
		id,
	)
	if err != nil {
		return database.MapSQLiteError("users.update_login_state", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return database.MapSQLiteError("users.update_login_state", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, database.MapSQLiteError("users.count", err)
	}
	return count, nil
}
