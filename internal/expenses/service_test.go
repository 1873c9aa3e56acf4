package expenses

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brickworks-erp/brickworks/internal/safe"
)

type memoryExpenseRepo struct {
	expenses map[int64]Expense
	nextID   int64
}

func newMemoryExpenseRepo() *memoryExpenseRepo {
	return &memoryExpenseRepo{expenses: map[int64]Expense{}, nextID: 1}
}

func (m *memoryExpenseRepo) List(_ context.Context, req ListExpensesRequest) ([]Expense, int, error) {
	var out []Expense
	for _, e := range m.expenses {
		if req.Category != "" && e.Category != req.Category {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryExpenseRepo) Get(_ context.Context, id int64) (Expense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryExpenseRepo) Insert(_ context.Context, e Expense) (Expense, error) {
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	m.nextID++
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memoryExpenseRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.expenses[id]; !ok {
		return ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

type fakeExpenseLedger struct {
	err    error
	nextID int64
	calls  int
}

func (f *fakeExpenseLedger) DeductForExpense(_ context.Context, input safe.ExpenseDeductionInput) (safe.Transaction, error) {
	if f.err != nil {
		return safe.Transaction{}, f.err
	}
	f.nextID++
	f.calls++
	return safe.Transaction{ID: f.nextID, Amount: -input.Amount}, nil
}

func TestCreateExpenseDeductsFromSafe(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeExpenseLedger{}
	svc := NewService(repo, ledger)

	created, err := svc.Create(context.Background(), CreateExpenseInput{
		Description: "site fuel",
		Category:    "Fuel",
		Amount:      1500,
		CreatedBy:   1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, ledger.calls)
	require.NotZero(t, created.SafeTransactionID)
}

func TestCreateExpenseRejectedWhenSafeRefuses(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeExpenseLedger{err: safe.ErrInsufficientFunds}
	svc := NewService(repo, ledger)

	_, err := svc.Create(context.Background(), CreateExpenseInput{
		Description: "site fuel",
		Category:    "Fuel",
		Amount:      1500,
	})
	require.ErrorIs(t, err, safe.ErrInsufficientFunds)
	require.Empty(t, repo.expenses, "no record without a safe deduction")
}

func TestCreateExpenseValidation(t *testing.T) {
	svc := NewService(newMemoryExpenseRepo(), &fakeExpenseLedger{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateExpenseInput{Description: "x", Category: "y", Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(ctx, CreateExpenseInput{Amount: 100})
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestListExpensesReportsPagination(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := NewService(repo, &fakeExpenseLedger{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, CreateExpenseInput{Description: "x", Category: "Fuel", Amount: 10})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ListExpensesRequest{Category: "Fuel", Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Equal(t, 3, page.Pagination.Total)
	require.Equal(t, 2, page.Pagination.TotalPages)
}

func TestDeleteExpenseKeepsLedgerTransaction(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeExpenseLedger{}
	svc := NewService(repo, ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateExpenseInput{Description: "x", Category: "y", Amount: 100})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.Empty(t, repo.expenses)
	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
}
