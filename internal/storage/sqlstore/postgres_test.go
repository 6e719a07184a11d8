package sqlstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/budgetapp/budget-api/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func setupMockDB(t *testing.T, driver string) (*Storage, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	store := NewWithDB(sqlx.NewDb(db, driver), slog.New(slog.NewTextHandler(io.Discard, nil)))

	return store, mock, func() { _ = db.Close() }
}

const insertUserQuery = `INSERT INTO users (email, username, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id`

func TestSaveUserPostgresPlaceholders(t *testing.T) {
	store, mock, cleanup := setupMockDB(t, DriverPostgres)
	defer cleanup()

	mock.
		ExpectQuery(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("alice@example.com", "alice", "hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	user, err := store.SaveUser(context.Background(), "alice@example.com", "alice", []byte("hash"))
	if err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if user.ID != 7 {
		t.Fatalf("expected id 7, got %d", user.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestSaveUserUniqueViolation(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		err    error
		want   error
	}{
		{
			name:   "pq email",
			driver: DriverPostgres,
			err:    &pq.Error{Code: "23505", Constraint: "users_email_key"},
			want:   storage.ErrEmailExists,
		},
		{
			name:   "pq username",
			driver: DriverPostgres,
			err:    &pq.Error{Code: "23505", Constraint: "users_username_key"},
			want:   storage.ErrUsernameExists,
		},
		{
			name:   "pgx email",
			driver: DriverPgx,
			err:    &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			want:   storage.ErrEmailExists,
		},
		{
			name:   "pgx username",
			driver: DriverPgx,
			err:    &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"},
			want:   storage.ErrUsernameExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, cleanup := setupMockDB(t, tt.driver)
			defer cleanup()

			mock.
				ExpectQuery(regexp.QuoteMeta(insertUserQuery)).
				WillReturnError(tt.err)

			_, err := store.SaveUser(context.Background(), "alice@example.com", "alice", []byte("hash"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveUserOtherErrorIsWrapped(t *testing.T) {
	store, mock, cleanup := setupMockDB(t, DriverPostgres)
	defer cleanup()

	dbErr := &pq.Error{Code: "23503", Constraint: "users_email_key"}
	mock.
		ExpectQuery(regexp.QuoteMeta(insertUserQuery)).
		WillReturnError(dbErr)

	_, err := store.SaveUser(context.Background(), "alice@example.com", "alice", []byte("hash"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, storage.ErrEmailExists) {
		t.Fatalf("foreign key error must not map to a conflict")
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		t.Fatalf("expected wrapped *pq.Error, got %v", err)
	}
}

func TestTransactionsPostgresQuery(t *testing.T) {
	store, mock, cleanup := setupMockDB(t, DriverPostgres)
	defer cleanup()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.
		ExpectQuery(regexp.QuoteMeta(`SELECT id, title, amount, category, description, date, user_id FROM transactions WHERE user_id = $1 AND category = $2 ORDER BY id LIMIT $3 OFFSET $4`)).
		WithArgs(7, "income", 2, 1).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "title", "amount", "category", "description", "date", "user_id"}).
				AddRow(11, "Salary", 3000.0, "income", nil, now, 7),
		)

	income := models.CategoryIncome
	list, err := store.Transactions(context.Background(), 7, models.TransactionFilter{Category: &income, Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(list))
	}
	if list[0].Category != models.CategoryIncome || list[0].Description != nil || !list[0].Date.Equal(now) {
		t.Fatalf("unexpected row: %+v", list[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestDeleteUserPostgresTx(t *testing.T) {
	store, mock, cleanup := setupMockDB(t, DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.
		ExpectExec(regexp.QuoteMeta(`DELETE FROM transactions WHERE user_id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.
		ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteUser(context.Background(), 5); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestDeleteUserMissingRollsBack(t *testing.T) {
	store, mock, cleanup := setupMockDB(t, DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.
		ExpectExec(regexp.QuoteMeta(`DELETE FROM transactions WHERE user_id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.
		ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.DeleteUser(context.Background(), 5)
	if !errors.Is(err, storage.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestUpdateTransactionPostgresQuery(t *testing.T) {
	store, mock, cleanup := setupMockDB(t, DriverPostgres)
	defer cleanup()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.
		ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET title = $1, description = NULL WHERE id = $2 AND user_id = $3`)).
		WithArgs("Groceries", 3, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.
		ExpectQuery(regexp.QuoteMeta(`SELECT id, title, amount, category, description, date, user_id FROM transactions WHERE id = $1 AND user_id = $2`)).
		WithArgs(3, 7).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "title", "amount", "category", "description", "date", "user_id"}).
				AddRow(3, "Groceries", 42.0, "expense", nil, now, 7),
		)
	mock.ExpectCommit()

	title := "Groceries"
	got, err := store.UpdateTransaction(context.Background(), 7, 3, models.TransactionUpdate{
		Title:            &title,
		ClearDescription: true,
	})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if got.Title != "Groceries" || got.Description != nil {
		t.Fatalf("unexpected row: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
