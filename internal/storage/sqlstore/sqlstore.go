package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/budgetapp/budget-api/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

const pgUniqueViolation = "23505"

// Storage keeps users and their transactions in a SQL database.
// Queries use ? placeholders and are rebound for the driver in use.
type Storage struct {
	db     *sqlx.DB
	dsn    string
	logger *slog.Logger
}

func New(driver, dsn string, logger *slog.Logger) (*Storage, error) {
	const op = "storage.sqlstore.New"

	switch driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, driver)
	}

	if driver == DriverSQLite {
		dsn = withForeignKeys(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: database connection error: %w", op, err)
	}

	if driver == DriverSQLite {
		// one writer at a time; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to connect database: %w", op, err)
	}

	return &Storage{db: db, dsn: dsn, logger: logger}, nil
}

// NewWithDB wraps an already opened connection. The driver name of db
// decides the placeholder style.
func NewWithDB(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{db: db, logger: logger}
}

// withForeignKeys turns on foreign key enforcement for every connection
// the sqlite driver opens. SQLite leaves it off by default.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) driver() string {
	return s.db.DriverName()
}

// userConflict maps a unique violation on users to the matching storage error.
// It returns nil for any other error.
func userConflict(err error) error {
	var constraint string

	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation:
		constraint = pqErr.Constraint
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		constraint = pgErr.ConstraintName
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		// sqlite: "UNIQUE constraint failed: users.email"
		constraint = err.Error()
	default:
		return nil
	}

	switch {
	case strings.Contains(constraint, "email"):
		return storage.ErrEmailExists
	case strings.Contains(constraint, "username"):
		return storage.ErrUsernameExists
	}
	return nil
}
