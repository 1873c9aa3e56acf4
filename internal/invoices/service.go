package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brickworks-erp/brickworks/internal/projects"
	"github.com/brickworks-erp/brickworks/internal/safe"
)

var (
	// ErrInvalidAmount rejects non-positive invoice amounts.
	ErrInvalidAmount = errors.New("invoices: amount must be positive")
	// ErrWrongStatus rejects lifecycle transitions out of order.
	ErrWrongStatus = errors.New("invoices: invalid status for this operation")
)

// AssignmentBook is the slice of the projects service invoices need.
// Implemented by *projects.Service.
type AssignmentBook interface {
	GetAssignment(ctx context.Context, id int64) (projects.CategoryAssignment, error)
	GetProject(ctx context.Context, id int64) (projects.Project, error)
	MarkAssignmentApproved(ctx context.Context, id int64) error
}

// SafeLedger is the slice of the safe service invoices need.
type SafeLedger interface {
	DeductForInvoice(ctx context.Context, input safe.InvoiceDeductionInput) (safe.Transaction, error)
}

// Service implements the category invoice lifecycle.
type Service struct {
	repo        Repository
	assignments AssignmentBook
	safe        SafeLedger
}

// NewService constructs a Service.
func NewService(repo Repository, assignments AssignmentBook, ledger SafeLedger) *Service {
	return &Service{repo: repo, assignments: assignments, safe: ledger}
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]CategoryInvoice, error) {
	return s.repo.List(ctx, req)
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id int64) (CategoryInvoice, error) {
	return s.repo.Get(ctx, id)
}

// Create raises a draft invoice against an assignment. The project id comes
// from the assignment so an invoice can never point at a foreign project.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (CategoryInvoice, error) {
	if input.Amount <= 0 {
		return CategoryInvoice{}, ErrInvalidAmount
	}
	assignment, err := s.assignments.GetAssignment(ctx, input.AssignmentID)
	if err != nil {
		return CategoryInvoice{}, err
	}
	if input.InvoiceNumber == "" {
		input.InvoiceNumber = fmt.Sprintf("INV-%d-%d", assignment.ProjectID, time.Now().Unix())
	}
	return s.repo.Create(ctx, assignment.ProjectID, input)
}

// Approve moves a draft invoice to approved and protects its assignment
// from further edits and deletes.
func (s *Service) Approve(ctx context.Context, id int64) (CategoryInvoice, error) {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return CategoryInvoice{}, err
	}
	if invoice.Status != StatusDraft {
		return CategoryInvoice{}, ErrWrongStatus
	}
	if err := s.repo.SetApproved(ctx, id, time.Now()); err != nil {
		return CategoryInvoice{}, err
	}
	if err := s.assignments.MarkAssignmentApproved(ctx, invoice.AssignmentID); err != nil {
		return CategoryInvoice{}, err
	}
	return s.repo.Get(ctx, id)
}

// Pay deducts the invoice amount from the safe, marks the invoice paid and
// accumulates the amount on the assignment's actual spend. The safe rejects
// the deduction when the balance does not cover it; nothing changes then.
func (s *Service) Pay(ctx context.Context, id, paidBy int64) (PayResult, error) {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return PayResult{}, err
	}
	if invoice.Status != StatusApproved {
		return PayResult{}, ErrWrongStatus
	}
	project, err := s.assignments.GetProject(ctx, invoice.ProjectID)
	if err != nil {
		return PayResult{}, err
	}

	tx, err := s.safe.DeductForInvoice(ctx, safe.InvoiceDeductionInput{
		Amount:        invoice.Amount,
		ProjectID:     invoice.ProjectID,
		ProjectName:   project.Name,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceID:     &invoice.ID,
		CreatedBy:     paidBy,
	})
	if err != nil {
		return PayResult{}, err
	}

	accrual, err := s.repo.SetPaid(ctx, id, time.Now(), tx.ID, invoice.AssignmentID, invoice.Amount)
	if err != nil {
		return PayResult{}, err
	}
	paid, err := s.repo.Get(ctx, id)
	if err != nil {
		return PayResult{}, err
	}
	return PayResult{
		Invoice:         paid,
		BudgetExhausted: accrual.BudgetExhausted,
		ActualAmount:    accrual.ActualAmount,
		EstimatedAmount: accrual.EstimatedAmount,
	}, nil
}
