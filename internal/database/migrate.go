package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/BradenHooton/snipvault/migrations"
	"github.com/pressly/goose/v3"
)

const (
	dialectPostgres = goose.DialectPostgres
	dialectSQLite   = goose.DialectSQLite3
)

func migrationsFor(dialect goose.Dialect) fs.FS {
	if dialect == dialectSQLite {
		return migrations.SQLite()
	}
	return migrations.Postgres()
}

// runMigrations applies pending migrations with a goose provider, avoiding
// goose's package-level dialect and base FS.
func runMigrations(ctx context.Context, db *sql.DB, dialect goose.Dialect, logger *slog.Logger) error {
	provider, err := goose.NewProvider(dialect, db, migrationsFor(dialect))
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	for _, result := range results {
		logger.Info("migration applied",
			slog.Int64("version", result.Source.Version),
			slog.Duration("duration", result.Duration),
		)
	}

	return nil
}
