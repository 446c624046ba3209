package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// ErrDirtySchema is returned when a previous migration failed half way.
// The schema must be repaired by hand (migrate force) before the services start.
var ErrDirtySchema = errors.New("postgres schema is dirty")

// RunMigrations brings the schema up to the newest version under migrationsPath
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) (err error) {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(sourceURL(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(wrapIfErr("migration source error", sourceErr), wrapIfErr("migration database error", dbErr))
		}
	}()

	if version, dirty, verr := m.Version(); verr == nil && dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}

	upErr := m.Up()
	switch {
	case errors.Is(upErr, migrate.ErrNoChange):
	case upErr != nil:
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", verr)
	}
	logger.Info("PostgreSQL schema ready", "version", version, "changed", upErr == nil)
	return nil
}

func wrapIfErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func sourceURL(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
