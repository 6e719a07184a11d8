package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/budgetapp/budget-api/internal/storage"
)

const userColumns = `id, email, username, password_hash, created_at`

func (s *Storage) SaveUser(ctx context.Context, email, username string, passHash []byte) (models.User, error) {
	const op = "storage.sqlstore.SaveUser"

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(passHash),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	query := s.db.Rebind(`INSERT INTO users (email, username, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowxContext(ctx, query, user.Email, user.Username, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return models.User{}, conflict
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.sqlstore.UserByID"

	return s.userBy(ctx, op, "id", id)
}

func (s *Storage) UserByUsername(ctx context.Context, username string) (models.User, error) {
	const op = "storage.sqlstore.UserByUsername"

	return s.userBy(ctx, op, "username", username)
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.sqlstore.UserByEmail"

	return s.userBy(ctx, op, "email", email)
}

// userBy looks a user up by a unique column. column is never user input.
func (s *Storage) userBy(ctx context.Context, op, column string, value any) (models.User, error) {
	var user models.User

	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	if err := s.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// DeleteUser removes the user together with every transaction it owns in
// a single database transaction.
func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.sqlstore.DeleteUser"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM transactions WHERE user_id = ?`), id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
