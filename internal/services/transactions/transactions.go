package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/budgetapp/budget-api/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCategory   = errors.New("category must be 'income' or 'expense'")
	ErrInvalidPagination = errors.New("skip and limit must not be negative")
	ErrNotFound          = errors.New("transaction not found")
)

type Store interface {
	SaveTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)
	Transaction(ctx context.Context, ownerID, id int64) (models.Transaction, error)
	Transactions(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error)
	OwnerTransactions(ctx context.Context, ownerID int64) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, ownerID, id int64, upd models.TransactionUpdate) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, id int64) error
}

// Service manages transactions on behalf of an authenticated owner. Every
// call is scoped to that owner.
type Service struct {
	log   *slog.Logger
	store Store
	now   func() time.Time
}

func New(log *slog.Logger, store Store) *Service {
	return &Service{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

func (s *Service) Create(ctx context.Context, owner models.User, in models.NewTransaction) (models.Transaction, error) {
	const op = "services.transactions.Create"

	if !in.Category.Valid() {
		return models.Transaction{}, ErrInvalidCategory
	}

	t, err := s.store.SaveTransaction(ctx, models.Transaction{
		Title:       in.Title,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        s.now().UTC().Truncate(time.Microsecond),
		UserID:      owner.ID,
	})
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("transaction created",
		slog.String("op", op),
		slog.Int64("uid", owner.ID),
		slog.Int64("id", t.ID),
	)

	return t, nil
}

// List returns up to limit of the owner's transactions after skipping skip,
// optionally restricted to one category.
func (s *Service) List(ctx context.Context, owner models.User, category *models.Category, skip, limit int) ([]models.Transaction, error) {
	const op = "services.transactions.List"

	if skip < 0 || limit < 0 {
		return nil, ErrInvalidPagination
	}

	list, err := s.store.Transactions(ctx, owner.ID, models.TransactionFilter{
		Category: category,
		Offset:   skip,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Service) Get(ctx context.Context, owner models.User, id int64) (models.Transaction, error) {
	const op = "services.transactions.Get"

	t, err := s.store.Transaction(ctx, owner.ID, id)
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			return models.Transaction{}, ErrNotFound
		}
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// Update applies a partial update. A category, when present, must be valid.
func (s *Service) Update(ctx context.Context, owner models.User, id int64, upd models.TransactionUpdate) (models.Transaction, error) {
	const op = "services.transactions.Update"

	if upd.Category != nil && !upd.Category.Valid() {
		return models.Transaction{}, ErrInvalidCategory
	}

	t, err := s.store.UpdateTransaction(ctx, owner.ID, id, upd)
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			return models.Transaction{}, ErrNotFound
		}
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (s *Service) Delete(ctx context.Context, owner models.User, id int64) error {
	const op = "services.transactions.Delete"

	if err := s.store.DeleteTransaction(ctx, owner.ID, id); err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("transaction deleted",
		slog.String("op", op),
		slog.Int64("uid", owner.ID),
		slog.Int64("id", id),
	)

	return nil
}

// Summarize totals every transaction of the owner by category.
func (s *Service) Summarize(ctx context.Context, owner models.User) (models.Summary, error) {
	const op = "services.transactions.Summarize"

	list, err := s.store.OwnerTransactions(ctx, owner.ID)
	if err != nil {
		return models.Summary{}, fmt.Errorf("%s: %w", op, err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, t := range list {
		amount := decimal.NewFromFloat(t.Amount)
		switch t.Category {
		case models.CategoryIncome:
			income = income.Add(amount)
		case models.CategoryExpense:
			expense = expense.Add(amount)
		}
	}

	return models.Summary{
		TotalIncome:      income.InexactFloat64(),
		TotalExpense:     expense.InexactFloat64(),
		Balance:          income.Sub(expense).InexactFloat64(),
		TransactionCount: len(list),
	}, nil
}
