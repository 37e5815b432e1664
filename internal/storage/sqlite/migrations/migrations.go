package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/botctl/internal/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Up brings the database schema to the latest embedded version.
func Up(ctx context.Context, db *sql.DB, logger log.Logger) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}
	logger = logger.WithValues(log.Kv{"svc": "sqlite.migrations"})

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("could not load embedded migrations: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warningf("could not close migrations source: %s", err)
		}
	}()

	// The driver is not closed, it would close the shared db.
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debugf("Database schema up to date")
	case err != nil:
		return fmt.Errorf("could not apply migrations: %w", err)
	default:
		if version, _, err := m.Version(); err == nil {
			logger.Debugf("Database schema migrated to version %d", version)
		}
	}

	return nil
}
