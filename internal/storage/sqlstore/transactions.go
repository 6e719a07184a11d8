package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/budgetapp/budget-api/internal/storage"
)

const transactionColumns = `id, title, amount, category, description, date, user_id`

func (s *Storage) SaveTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	const op = "storage.sqlstore.SaveTransaction"

	query := s.db.Rebind(`INSERT INTO transactions (title, amount, category, description, date, user_id)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)

	err := s.db.QueryRowxContext(ctx, query,
		t.Title, t.Amount, string(t.Category), t.Description, t.Date, t.UserID,
	).Scan(&t.ID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// Transaction returns the transaction only when it belongs to ownerID.
func (s *Storage) Transaction(ctx context.Context, ownerID, id int64) (models.Transaction, error) {
	const op = "storage.sqlstore.Transaction"

	var t models.Transaction

	query := s.db.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`)
	if err := s.db.GetContext(ctx, &t, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Transaction{}, storage.ErrTransactionNotFound
		}
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// Transactions lists the owner's transactions in insertion order.
func (s *Storage) Transactions(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	const op = "storage.sqlstore.Transactions"

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{ownerID}

	if filter.Category != nil {
		query += ` AND category = ?`
		args = append(args, string(*filter.Category))
	}

	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	transactions := make([]models.Transaction, 0)
	if err := s.db.SelectContext(ctx, &transactions, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return transactions, nil
}

// OwnerTransactions returns every transaction of the owner.
func (s *Storage) OwnerTransactions(ctx context.Context, ownerID int64) ([]models.Transaction, error) {
	const op = "storage.sqlstore.OwnerTransactions"

	transactions := make([]models.Transaction, 0)
	query := s.db.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &transactions, query, ownerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return transactions, nil
}

// UpdateTransaction writes only the fields set in upd and returns the
// stored row afterwards.
func (s *Storage) UpdateTransaction(ctx context.Context, ownerID, id int64, upd models.TransactionUpdate) (models.Transaction, error) {
	const op = "storage.sqlstore.UpdateTransaction"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if !upd.Empty() {
		var sets []string
		var args []any

		if upd.Title != nil {
			sets = append(sets, "title = ?")
			args = append(args, *upd.Title)
		}
		if upd.Amount != nil {
			sets = append(sets, "amount = ?")
			args = append(args, *upd.Amount)
		}
		if upd.Category != nil {
			sets = append(sets, "category = ?")
			args = append(args, string(*upd.Category))
		}
		switch {
		case upd.ClearDescription:
			sets = append(sets, "description = NULL")
		case upd.Description != nil:
			sets = append(sets, "description = ?")
			args = append(args, *upd.Description)
		}

		query := `UPDATE transactions SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
		args = append(args, id, ownerID)

		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
		}
		if n == 0 {
			return models.Transaction{}, storage.ErrTransactionNotFound
		}
	}

	var t models.Transaction
	query := tx.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`)
	if err := tx.GetContext(ctx, &t, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Transaction{}, storage.ErrTransactionNotFound
		}
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (s *Storage) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	const op = "storage.sqlstore.DeleteTransaction"

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM transactions WHERE id = ? AND user_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrTransactionNotFound
	}

	return nil
}
