package expenses

import (
	"time"

	"github.com/brickworks-erp/brickworks/internal/shared"
)

// Expense is a general expense record. Creation deducts from the safe in the
// same operation, so the record always has its funding transaction.
type Expense struct {
	ID                int64     `json:"id"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	Amount            float64   `json:"amount"`
	SafeTransactionID int64     `json:"safe_transaction_id"`
	CreatedBy         int64     `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateExpenseInput records a new expense.
type CreateExpenseInput struct {
	Description string
	Category    string
	Amount      float64
	CreatedBy   int64
}

// ListExpensesRequest filters by category and calendar month.
type ListExpensesRequest struct {
	Category string
	Year     int
	Month    time.Month
	Page     int
	PerPage  int
}

// ExpensePage is one page of the expense listing.
type ExpensePage struct {
	Items      []Expense         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}
