package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// Migrate applies all pending up migrations for the current driver.
func (s *Storage) Migrate() error {
	const op = "storage.sqlstore.Migrate"

	return s.withMigrator(op, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				s.logger.Info("no migrations to apply")
				return nil
			}
			return err
		}
		s.logger.Info("migrations applied successfully")
		return nil
	})
}

// MigrateDown rolls back every applied migration.
func (s *Storage) MigrateDown() error {
	const op = "storage.sqlstore.MigrateDown"

	return s.withMigrator(op, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		s.logger.Info("migrations rolled back")
		return nil
	})
}

// MigrationVersion returns the current schema version. ok is false when no
// migration was applied yet.
func (s *Storage) MigrationVersion() (version uint, dirty bool, ok bool, err error) {
	const op = "storage.sqlstore.MigrationVersion"

	err = s.withMigrator(op, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return verr
		}
		version, dirty, ok = v, d, true
		return nil
	})
	return version, dirty, ok, err
}

func (s *Storage) withMigrator(op string, fn func(m *migrate.Migrate) error) error {
	dialect := "postgres"
	if s.driver() == DriverSQLite {
		dialect = "sqlite"
	}

	src, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var m *migrate.Migrate
	if dialect == "sqlite" {
		// The migrate driver would close s.db on Close, so the instance is
		// left open and owned by Storage.
		drv, err := sqlite.WithInstance(s.db.DB, &sqlite.Config{MigrationsTable: migrationsTable})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if s.dsn == "" {
			return fmt.Errorf("%s: postgres migrations need a DSN", op)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, s.dsn)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer func() {
			if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
				s.logger.Warn("failed to close migrator",
					slog.Any("source_error", srcErr),
					slog.Any("database_error", dbErr),
				)
			}
		}()
	}

	if err := fn(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
