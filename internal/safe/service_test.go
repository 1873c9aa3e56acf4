package safe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySafeRepo struct {
	mu           sync.Mutex
	balance      Balance
	transactions map[int64]Transaction
	nextID       int64
}

type memorySafeTx struct {
	repo *memorySafeRepo
}

func newMemorySafeRepo(balance float64) *memorySafeRepo {
	return &memorySafeRepo{
		balance:      Balance{Current: balance, TotalFunded: balance},
		transactions: make(map[int64]Transaction),
	}
}

// WithTx serializes on a mutex the way the real repository serializes on the
// locked balance row.
func (r *memorySafeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memorySafeTx{repo: r})
}

// State takes the same lock as WithTx, mirroring the repeatable-read snapshot
// the real repository reads balance and history under.
func (r *memorySafeRepo) State(ctx context.Context, limit int) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := State{
		CurrentBalance: r.balance.Current,
		TotalFunded:    r.balance.TotalFunded,
		TotalSpent:     r.balance.TotalSpent,
	}
	for _, t := range r.transactions {
		if t.Status == StatusVoid {
			continue
		}
		state.Transactions = append(state.Transactions, t)
	}
	sort.Slice(state.Transactions, func(i, j int) bool {
		return state.Transactions[i].ID > state.Transactions[j].ID
	})
	if limit > 0 && len(state.Transactions) > limit {
		state.Transactions = state.Transactions[:limit]
	}
	return state, nil
}

func (r *memorySafeRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, ok := r.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (r *memorySafeRepo) ListPending(ctx context.Context, olderThan time.Time) ([]Transaction, error) {
	var out []Transaction
	for _, t := range r.transactions {
		if t.Status == StatusPending && t.CreatedAt.Before(olderThan) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memorySafeTx) BalanceForUpdate(ctx context.Context) (Balance, error) {
	return tx.repo.balance, nil
}

func (tx *memorySafeTx) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, ok := tx.repo.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (tx *memorySafeTx) ApplyBalance(ctx context.Context, bal Balance) error {
	tx.repo.balance = bal
	return nil
}

func (tx *memorySafeTx) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	tx.repo.nextID++
	t.ID = tx.repo.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	tx.repo.transactions[t.ID] = t
	return t.ID, nil
}

func (tx *memorySafeTx) UpdateTransaction(ctx context.Context, t Transaction) error {
	existing, ok := tx.repo.transactions[t.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Amount = t.Amount
	existing.Description = t.Description
	existing.NewBalance = t.NewBalance
	existing.IsEdited = t.IsEdited
	existing.EditReason = t.EditReason
	existing.EditedBy = t.EditedBy
	existing.EditedAt = t.EditedAt
	tx.repo.transactions[t.ID] = existing
	return nil
}

func (tx *memorySafeTx) SetStatus(ctx context.Context, id int64, status TransactionStatus) error {
	t, ok := tx.repo.transactions[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	tx.repo.transactions[id] = t
	return nil
}

func newTestService(balance float64) (*Service, *memorySafeRepo) {
	repo := newMemorySafeRepo(balance)
	return NewService(repo, NewCache(nil, 0), nil), repo
}

func TestAddFundingKeepsBalanceInvariant(t *testing.T) {
	svc, repo := newTestService(0)

	created, err := svc.AddFunding(context.Background(), FundingInput{
		Amount:      250_000,
		Description: "Initial capital",
		CreatedBy:   1,
	})
	require.NoError(t, err)
	require.Equal(t, created.PreviousBalance+created.Amount, created.NewBalance)
	require.Equal(t, StatusConfirmed, created.Status)
	require.NotEmpty(t, created.BatchNumber)
	require.Equal(t, 250_000.0, repo.balance.Current)
	require.Equal(t, 250_000.0, repo.balance.TotalFunded)
}

func TestAddFundingRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(0)

	_, err := svc.AddFunding(context.Background(), FundingInput{Amount: -5, Description: "x"})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.AddFunding(context.Background(), FundingInput{Amount: 100})
	require.Error(t, err)
}

func TestDeductForInvoiceInsufficientFunds(t *testing.T) {
	svc, repo := newTestService(1_000_000)

	_, err := svc.DeductForInvoice(context.Background(), InvoiceDeductionInput{
		Amount:        1_500_000,
		ProjectID:     7,
		ProjectName:   "Tower A",
		InvoiceNumber: "INV-100",
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, 1_000_000.0, repo.balance.Current)
	require.Empty(t, repo.transactions)
}

func TestDeductForInvoiceSuccess(t *testing.T) {
	svc, repo := newTestService(1_000_000)

	created, err := svc.DeductForInvoice(context.Background(), InvoiceDeductionInput{
		Amount:        500_000,
		ProjectID:     7,
		ProjectName:   "Tower A",
		InvoiceNumber: "INV-100",
	})
	require.NoError(t, err)
	require.Equal(t, -500_000.0, created.Amount)
	require.Equal(t, 1_000_000.0, created.PreviousBalance)
	require.Equal(t, 500_000.0, created.NewBalance)
	require.Equal(t, 500_000.0, repo.balance.Current)
	require.Equal(t, 500_000.0, repo.balance.TotalSpent)

	state, err := svc.State(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Transactions, 1)
	require.Equal(t, TypeInvoicePayment, state.Transactions[0].Type)
}

func TestDeductForSalaryPendingLifecycle(t *testing.T) {
	svc, repo := newTestService(800_000)
	employeeID := int64(42)

	created, err := svc.DeductForSalary(context.Background(), SalaryDeductionInput{
		Amount:       300_000,
		EmployeeID:   &employeeID,
		EmployeeName: "Ahmed",
		Pending:      true,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)
	require.Equal(t, 500_000.0, repo.balance.Current)

	// Backdate so the reconciliation pass picks it up.
	stored := repo.transactions[created.ID]
	stored.CreatedAt = time.Now().Add(-2 * time.Hour)
	repo.transactions[created.ID] = stored

	result, err := svc.ReconcilePending(context.Background(), verifierFunc(func(ctx context.Context, id int64, amount float64, since time.Time) (bool, error) {
		return id == employeeID && amount == 300_000, nil
	}), time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, result.Confirmed)
	require.Equal(t, 0, result.Voided)
	require.Equal(t, StatusConfirmed, repo.transactions[created.ID].Status)
}

func TestReconcileVoidsStalePending(t *testing.T) {
	svc, repo := newTestService(800_000)
	employeeID := int64(42)

	created, err := svc.DeductForSalary(context.Background(), SalaryDeductionInput{
		Amount:       300_000,
		EmployeeID:   &employeeID,
		EmployeeName: "Ahmed",
		Pending:      true,
	})
	require.NoError(t, err)

	stored := repo.transactions[created.ID]
	stored.CreatedAt = time.Now().Add(-2 * time.Hour)
	repo.transactions[created.ID] = stored

	result, err := svc.ReconcilePending(context.Background(), verifierFunc(func(ctx context.Context, id int64, amount float64, since time.Time) (bool, error) {
		return false, nil
	}), time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, result.Voided)
	require.Equal(t, StatusVoid, repo.transactions[created.ID].Status)
	// Voiding refunds the held amount.
	require.Equal(t, 800_000.0, repo.balance.Current)
	require.Equal(t, 0.0, repo.balance.TotalSpent)
}

func TestEditTransactionAdjustsBalance(t *testing.T) {
	svc, repo := newTestService(1_000_000)

	created, err := svc.DeductForExpense(context.Background(), ExpenseDeductionInput{
		Amount:      200_000,
		Description: "Fuel",
		Category:    "transport",
	})
	require.NoError(t, err)
	require.Equal(t, 800_000.0, repo.balance.Current)

	newAmount := 150_000.0
	updated, err := svc.EditTransaction(context.Background(), EditTransactionInput{
		ID:       created.ID,
		Amount:   &newAmount,
		Reason:   "receipt corrected",
		EditedBy: 9,
	})
	require.NoError(t, err)
	require.Equal(t, -150_000.0, updated.Amount)
	require.True(t, updated.IsEdited)
	require.NotNil(t, updated.EditedAt)
	require.Equal(t, 850_000.0, repo.balance.Current)
	require.Equal(t, 150_000.0, repo.balance.TotalSpent)
}

func TestEditTransactionConcurrentEditsKeepBalance(t *testing.T) {
	svc, repo := newTestService(1_000_000)

	created, err := svc.DeductForExpense(context.Background(), ExpenseDeductionInput{
		Amount:      200_000,
		Description: "Fuel",
		Category:    "transport",
	})
	require.NoError(t, err)

	amounts := []float64{150_000, 100_000}
	errs := make(chan error, len(amounts))
	var wg sync.WaitGroup
	for _, amount := range amounts {
		wg.Add(1)
		go func(amount float64) {
			defer wg.Done()
			_, err := svc.EditTransaction(context.Background(), EditTransactionInput{
				ID:       created.ID,
				Amount:   &amount,
				Reason:   "receipt corrected",
				EditedBy: 9,
			})
			errs <- err
		}(amount)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Whichever edit lands last, the balance must agree with the surviving
	// row, not with a delta computed from a stale read.
	final := repo.transactions[created.ID]
	require.Equal(t, 1_000_000.0+final.Amount, repo.balance.Current)
	require.Equal(t, -final.Amount, repo.balance.TotalSpent)
	require.Equal(t, 1_000_000.0, repo.balance.TotalFunded)
}

func TestEditTransactionRequiresReason(t *testing.T) {
	svc, _ := newTestService(1_000_000)

	_, err := svc.EditTransaction(context.Background(), EditTransactionInput{ID: 1})
	require.ErrorIs(t, err, ErrEditReasonRequired)
}

func TestHasBalance(t *testing.T) {
	svc, _ := newTestService(1_000_000)

	ok, err := svc.HasBalance(context.Background(), 999_999)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasBalance(context.Background(), 1_000_001)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckIntegrityDetectsDrift(t *testing.T) {
	svc, repo := newTestService(0)

	_, err := svc.AddFunding(context.Background(), FundingInput{Amount: 100, Description: "seed"})
	require.NoError(t, err)

	findings, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	require.Empty(t, findings)

	repo.balance.Current = 75
	findings, err = svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, findings)
}

func TestCheckIntegrityCleanWhileLedgerMoves(t *testing.T) {
	svc, _ := newTestService(0)
	ctx := context.Background()

	_, err := svc.AddFunding(ctx, FundingInput{Amount: 10_000_000, Description: "seed", CreatedBy: 1})
	require.NoError(t, err)

	errs := make(chan error, 40)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DeductForExpense(ctx, ExpenseDeductionInput{
				Amount:      10_000,
				Description: "Fuel",
				Category:    "transport",
			})
			errs <- err
		}()
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The balance row and the history are read as one snapshot, so
			// a deduction landing mid-scan must never register as drift.
			findings, err := svc.CheckIntegrity(ctx)
			if err == nil && len(findings) > 0 {
				err = fmt.Errorf("unexpected findings: %v", findings)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

type verifierFunc func(ctx context.Context, employeeID int64, amount float64, since time.Time) (bool, error)

func (f verifierFunc) HasPayment(ctx context.Context, employeeID int64, amount float64, since time.Time) (bool, error) {
	return f(ctx, employeeID, amount, since)
}
