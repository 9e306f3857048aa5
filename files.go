package auth

import (
	"context"
	"database/sql"
	"embed"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsDir is the migrations directory inside GetMigrationsFS
const MigrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrate applies the embedded migrations. dialect is a goose dialect
// name, e.g. "postgres" or "sqlite3".
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unsupported migration dialect").
			WithMetadata(map[string]any{"dialect": dialect})
	}

	if err := goose.UpContext(ctx, db, MigrationsDir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	return nil
}
