package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BradenHooton/snipvault/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteDB is the single-file store used with DB_DRIVER=sqlite and in tests
type SQLiteDB struct {
	Conn   *sql.DB
	logger *slog.Logger
}

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteDB, error) {
	dsn := path
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; also keeps an in-memory database on a single connection.
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		slog.String("driver", "sqlite"),
		slog.String("path", path),
	)

	return &SQLiteDB{Conn: conn, logger: logger}, nil
}

func (db *SQLiteDB) Close() {
	db.logger.Info("closing sqlite database")
	_ = db.Conn.Close()
}

func (db *SQLiteDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Migrate applies the embedded sqlite migrations
func (db *SQLiteDB) Migrate(ctx context.Context) error {
	return runMigrations(ctx, db.Conn, dialectSQLite, db.logger)
}

// WithTransaction runs fn inside a transaction, rolling back on error or panic
func (db *SQLiteDB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

// MapSQLiteError converts driver errors into the domain error kinds
func MapSQLiteError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// the driver enables extended result codes on every connection
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return models.ErrConflict
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return models.ErrNotFound
		}
	}

	return models.NewStoreError(op, err)
}

// ToMillis and FromMillis convert between time.Time and the INTEGER
// millisecond columns of the sqlite schema.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NullMillis converts an optional time for a nullable column
func NullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// TimeFromNull is the inverse of NullMillis
func TimeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromMillis(n.Int64)
	return &t
}
