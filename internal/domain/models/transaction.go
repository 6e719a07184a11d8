package models

import "time"

type Category string

const (
	CategoryIncome  Category = "income"
	CategoryExpense Category = "expense"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryIncome || c == CategoryExpense
}

type Transaction struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Amount      float64   `json:"amount" db:"amount"`
	Category    Category  `json:"category" db:"category"`
	Description *string   `json:"description" db:"description"`
	Date        time.Time `json:"date" db:"date"`
	UserID      int64     `json:"user_id" db:"user_id"`
}

// NewTransaction holds the caller-supplied fields of a transaction to create.
type NewTransaction struct {
	Title       string
	Amount      float64
	Category    Category
	Description *string
}

// TransactionUpdate is a partial update. Nil fields are left untouched.
// ClearDescription sets description to NULL and wins over Description.
type TransactionUpdate struct {
	Title            *string
	Amount           *float64
	Category         *Category
	Description      *string
	ClearDescription bool
}

// Empty reports whether the update changes nothing.
func (u TransactionUpdate) Empty() bool {
	return u.Title == nil && u.Amount == nil && u.Category == nil && u.Description == nil && !u.ClearDescription
}

type TransactionFilter struct {
	Category *Category
	Offset   int
	Limit    int
}

type Summary struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpense     float64 `json:"total_expense"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transaction_count"`
}
