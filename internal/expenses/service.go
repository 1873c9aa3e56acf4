package expenses

import (
	"context"
	"errors"

	"github.com/brickworks-erp/brickworks/internal/safe"
	"github.com/brickworks-erp/brickworks/internal/shared"
)

var (
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("expenses: amount must be positive")
	// ErrMissingFields rejects expenses without description or category.
	ErrMissingFields = errors.New("expenses: description and category are required")
)

// SafeLedger is the slice of the safe service expenses need.
type SafeLedger interface {
	DeductForExpense(ctx context.Context, input safe.ExpenseDeductionInput) (safe.Transaction, error)
}

// Service records general expenses. Every expense goes through the safe, the
// same deduction path the other spend types use; there is no local-only mode.
type Service struct {
	repo Repository
	safe SafeLedger
}

// NewService constructs a Service.
func NewService(repo Repository, ledger SafeLedger) *Service {
	return &Service{repo: repo, safe: ledger}
}

// List returns one page of expenses matching the filter.
func (s *Service) List(ctx context.Context, req ListExpensesRequest) (ExpensePage, error) {
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ExpensePage{}, err
	}
	if items == nil {
		items = []Expense{}
	}
	return ExpensePage{
		Items:      items,
		Pagination: shared.NewPagination(req.Page, req.PerPage, total),
	}, nil
}

// Create deducts the amount from the safe and stores the expense record
// linked to the resulting transaction.
func (s *Service) Create(ctx context.Context, input CreateExpenseInput) (Expense, error) {
	if input.Amount <= 0 {
		return Expense{}, ErrInvalidAmount
	}
	if input.Description == "" || input.Category == "" {
		return Expense{}, ErrMissingFields
	}
	tx, err := s.safe.DeductForExpense(ctx, safe.ExpenseDeductionInput{
		Amount:      input.Amount,
		Description: input.Description,
		Category:    input.Category,
		CreatedBy:   input.CreatedBy,
	})
	if err != nil {
		return Expense{}, err
	}
	return s.repo.Insert(ctx, Expense{
		Description:       input.Description,
		Category:          input.Category,
		Amount:            input.Amount,
		SafeTransactionID: tx.ID,
		CreatedBy:         input.CreatedBy,
	})
}

// Delete removes the expense record. The safe transaction stays; corrections
// to the ledger go through the transaction edit endpoint.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
