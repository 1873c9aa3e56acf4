package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brickworks-erp/brickworks/internal/projects"
	"github.com/brickworks-erp/brickworks/internal/safe"
)

type accrualRow struct {
	actual    float64
	estimated float64
	exhausted bool
}

type memoryInvoiceRepo struct {
	invoices map[int64]CategoryInvoice
	accruals map[int64]accrualRow
	nextID   int64
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: map[int64]CategoryInvoice{},
		accruals: map[int64]accrualRow{},
		nextID:   1,
	}
}

func (m *memoryInvoiceRepo) List(_ context.Context, req ListInvoicesRequest) ([]CategoryInvoice, error) {
	var out []CategoryInvoice
	for _, inv := range m.invoices {
		if req.ProjectID > 0 && inv.ProjectID != req.ProjectID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryInvoiceRepo) Get(_ context.Context, id int64) (CategoryInvoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return CategoryInvoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryInvoiceRepo) Create(_ context.Context, projectID int64, input CreateInvoiceInput) (CategoryInvoice, error) {
	inv := CategoryInvoice{
		ID:            m.nextID,
		ProjectID:     projectID,
		AssignmentID:  input.AssignmentID,
		InvoiceNumber: input.InvoiceNumber,
		Amount:        input.Amount,
		Description:   input.Description,
		Status:        StatusDraft,
		CreatedBy:     input.CreatedBy,
		CreatedAt:     time.Now(),
	}
	m.nextID++
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memoryInvoiceRepo) SetApproved(_ context.Context, id int64, at time.Time) error {
	inv, ok := m.invoices[id]
	if !ok || inv.Status != StatusDraft {
		return ErrNotFound
	}
	inv.Status = StatusApproved
	inv.ApprovedAt = &at
	m.invoices[id] = inv
	return nil
}

// SetPaid mirrors the transactional repository: either both the status flip
// and the accrual land, or neither does.
func (m *memoryInvoiceRepo) SetPaid(_ context.Context, id int64, at time.Time, safeTransactionID, assignmentID int64, amount float64) (PaidAccrual, error) {
	inv, ok := m.invoices[id]
	if !ok || inv.Status != StatusApproved {
		return PaidAccrual{}, ErrNotFound
	}
	row, ok := m.accruals[assignmentID]
	if !ok {
		return PaidAccrual{}, ErrNotFound
	}
	row.actual += amount
	row.exhausted = row.actual >= row.estimated
	m.accruals[assignmentID] = row

	inv.Status = StatusPaid
	inv.PaidAt = &at
	inv.SafeTransactionID = &safeTransactionID
	m.invoices[id] = inv
	return PaidAccrual{
		ActualAmount:    row.actual,
		EstimatedAmount: row.estimated,
		BudgetExhausted: row.exhausted,
	}, nil
}

type fakeAssignmentBook struct {
	assignments map[int64]projects.CategoryAssignment
	project     projects.Project
}

func (f *fakeAssignmentBook) GetAssignment(_ context.Context, id int64) (projects.CategoryAssignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return projects.CategoryAssignment{}, projects.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssignmentBook) GetProject(_ context.Context, id int64) (projects.Project, error) {
	if id != f.project.ID {
		return projects.Project{}, projects.ErrNotFound
	}
	return f.project, nil
}

func (f *fakeAssignmentBook) MarkAssignmentApproved(_ context.Context, id int64) error {
	a, ok := f.assignments[id]
	if !ok {
		return projects.ErrNotFound
	}
	a.HasApprovedInvoice = true
	f.assignments[id] = a
	return nil
}

type fakeSafe struct {
	err    error
	nextID int64
	calls  []safe.InvoiceDeductionInput
}

func (f *fakeSafe) DeductForInvoice(_ context.Context, input safe.InvoiceDeductionInput) (safe.Transaction, error) {
	if f.err != nil {
		return safe.Transaction{}, f.err
	}
	f.nextID++
	f.calls = append(f.calls, input)
	return safe.Transaction{ID: f.nextID, Amount: -input.Amount}, nil
}

func fixture() (*memoryInvoiceRepo, *fakeAssignmentBook, *fakeSafe, *Service) {
	repo := newMemoryInvoiceRepo()
	book := &fakeAssignmentBook{
		project: projects.Project{ID: 10, Name: "Tower A"},
		assignments: map[int64]projects.CategoryAssignment{
			5: {ID: 5, ProjectID: 10, MainCategory: "Electrical", Subcategory: "Wiring", EstimatedAmount: 100000},
		},
	}
	repo.accruals[5] = accrualRow{estimated: 100000}
	ledger := &fakeSafe{}
	return repo, book, ledger, NewService(repo, book, ledger)
}

func TestCreateDerivesProjectFromAssignment(t *testing.T) {
	_, _, _, svc := fixture()
	created, err := svc.Create(context.Background(), CreateInvoiceInput{AssignmentID: 5, Amount: 40000})
	require.NoError(t, err)
	require.Equal(t, int64(10), created.ProjectID)
	require.Equal(t, StatusDraft, created.Status)
	require.NotEmpty(t, created.InvoiceNumber)
}

func TestApproveProtectsAssignment(t *testing.T) {
	_, book, _, svc := fixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInvoiceInput{AssignmentID: 5, Amount: 40000})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.True(t, book.assignments[5].HasApprovedInvoice)

	_, err = svc.Approve(ctx, created.ID)
	require.ErrorIs(t, err, ErrWrongStatus)
}

func TestPayDeductsAndAccumulatesActual(t *testing.T) {
	repo, _, ledger, svc := fixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInvoiceInput{AssignmentID: 5, Amount: 40000})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID)
	require.NoError(t, err)

	result, err := svc.Pay(ctx, created.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, result.Invoice.Status)
	require.NotNil(t, result.Invoice.SafeTransactionID)
	require.Equal(t, 40000.0, result.ActualAmount)
	require.False(t, result.BudgetExhausted)
	require.Len(t, ledger.calls, 1)
	require.Equal(t, "Tower A", ledger.calls[0].ProjectName)
	require.Equal(t, 40000.0, repo.accruals[5].actual)
}

func TestPayKeepsInvoiceApprovedWhenAccrualFails(t *testing.T) {
	repo, _, _, svc := fixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInvoiceInput{AssignmentID: 5, Amount: 40000})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID)
	require.NoError(t, err)

	delete(repo.accruals, 5)
	_, err = svc.Pay(ctx, created.ID, 1)
	require.Error(t, err)
	require.Equal(t, StatusApproved, repo.invoices[created.ID].Status)
}

func TestPayFlagsBudgetExhausted(t *testing.T) {
	_, _, _, svc := fixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInvoiceInput{AssignmentID: 5, Amount: 120000})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID)
	require.NoError(t, err)

	result, err := svc.Pay(ctx, created.ID, 1)
	require.NoError(t, err)
	require.True(t, result.BudgetExhausted)
}

func TestPayRejectsUnapprovedInvoice(t *testing.T) {
	_, _, _, svc := fixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInvoiceInput{AssignmentID: 5, Amount: 40000})
	require.NoError(t, err)

	_, err = svc.Pay(ctx, created.ID, 1)
	require.ErrorIs(t, err, ErrWrongStatus)
}

func TestPayPropagatesInsufficientFundsUnchanged(t *testing.T) {
	repo, _, ledger, svc := fixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInvoiceInput{AssignmentID: 5, Amount: 40000})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID)
	require.NoError(t, err)

	ledger.err = safe.ErrInsufficientFunds
	_, err = svc.Pay(ctx, created.ID, 1)
	require.ErrorIs(t, err, safe.ErrInsufficientFunds)
	require.Equal(t, StatusApproved, repo.invoices[created.ID].Status)
}
