package safe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/brickworks-erp/brickworks/internal/shared"
)

var (
	// ErrInsufficientFunds rejects a deduction larger than the current balance.
	ErrInsufficientFunds = errors.New("safe: insufficient funds")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("safe: amount must be positive")
	// ErrEditReasonRequired rejects transaction edits without a reason.
	ErrEditReasonRequired = errors.New("safe: edit reason required")
)

// Service implements the safe ledger rules. All deductions are atomic
// check-and-deduct under a balance row lock; the client-side pre-check the
// console performs is advisory only.
type Service struct {
	repo  Repository
	cache *Cache
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, cache *Cache, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// State returns the ledger snapshot, serving from cache when fresh.
func (s *Service) State(ctx context.Context) (State, error) {
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}
	state, err := s.repo.State(ctx, 200)
	if err != nil {
		return State{}, err
	}
	if err := s.cache.Set(ctx, state); err != nil {
		// Snapshot is still valid without the cache.
		_ = err
	}
	return state, nil
}

// HasBalance reports whether the safe currently covers amount. Advisory:
// the authoritative check happens inside the deduction transaction.
func (s *Service) HasBalance(ctx context.Context, amount float64) (bool, error) {
	state, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return state.CurrentBalance >= amount, nil
}

// AddFunding deposits money into the safe and returns the created
// transaction. The newBalance = previousBalance + amount invariant is
// established here and never re-validated afterwards.
func (s *Service) AddFunding(ctx context.Context, input FundingInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if input.Description == "" {
		return Transaction{}, errors.New("safe: description required")
	}
	if input.BatchNumber == "" {
		input.BatchNumber = uuid.NewString()
	}

	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bal, err := tx.BalanceForUpdate(ctx)
		if err != nil {
			return err
		}
		created = Transaction{
			Type:            TypeFunding,
			Amount:          input.Amount,
			Description:     input.Description,
			Date:            time.Now(),
			PreviousBalance: bal.Current,
			NewBalance:      bal.Current + input.Amount,
			Status:          StatusConfirmed,
			BatchNumber:     input.BatchNumber,
			FundingSource:   optional(input.FundingSource),
			FundingNotes:    optional(input.FundingNotes),
			CreatedBy:       input.CreatedBy,
		}
		id, err := tx.InsertTransaction(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		bal.Current += input.Amount
		bal.TotalFunded += input.Amount
		return tx.ApplyBalance(ctx, bal)
	})
	if err != nil {
		return Transaction{}, err
	}
	_ = s.cache.Invalidate(ctx)
	created.CreatedAt = time.Now()
	return created, nil
}

// DeductForInvoice pays a project invoice. Insufficient balance returns
// ErrInsufficientFunds without touching the ledger.
func (s *Service) DeductForInvoice(ctx context.Context, input InvoiceDeductionInput) (Transaction, error) {
	if input.InvoiceNumber == "" {
		return Transaction{}, errors.New("safe: invoice number required")
	}
	desc := fmt.Sprintf("Invoice %s - %s", input.InvoiceNumber, input.ProjectName)
	return s.deduct(ctx, Transaction{
		Type:          TypeInvoicePayment,
		Description:   desc,
		ProjectID:     &input.ProjectID,
		ProjectName:   optional(input.ProjectName),
		InvoiceNumber: optional(input.InvoiceNumber),
		Status:        StatusConfirmed,
		CreatedBy:     input.CreatedBy,
	}, input.Amount)
}

// DeductForSalary pays an employee. A Pending input records the transaction
// in PENDING status for the reconciliation job to confirm or void.
func (s *Service) DeductForSalary(ctx context.Context, input SalaryDeductionInput) (Transaction, error) {
	if input.EmployeeName == "" {
		return Transaction{}, errors.New("safe: employee name required")
	}
	desc := "Salary - " + input.EmployeeName
	if input.Reason != "" {
		desc += " (" + input.Reason + ")"
	}
	status := StatusConfirmed
	if input.Pending {
		status = StatusPending
	}
	return s.deduct(ctx, Transaction{
		Type:         TypeSalaryPayment,
		Description:  desc,
		EmployeeID:   input.EmployeeID,
		EmployeeName: optional(input.EmployeeName),
		Status:       status,
		CreatedBy:    input.CreatedBy,
	}, input.Amount)
}

// DeductForExpense records a general expense. Server-authoritative like the
// other deduction paths.
func (s *Service) DeductForExpense(ctx context.Context, input ExpenseDeductionInput) (Transaction, error) {
	if input.Description == "" {
		return Transaction{}, errors.New("safe: description required")
	}
	return s.deduct(ctx, Transaction{
		Type:            TypeGeneralExpense,
		Description:     input.Description,
		ExpenseCategory: optional(input.Category),
		Status:          StatusConfirmed,
		CreatedBy:       input.CreatedBy,
	}, input.Amount)
}

func (s *Service) deduct(ctx context.Context, template Transaction, amount float64) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bal, err := tx.BalanceForUpdate(ctx)
		if err != nil {
			return err
		}
		if bal.Current < amount {
			return fmt.Errorf("%w: required %s, available %s", ErrInsufficientFunds,
				formatAmount(amount), formatAmount(bal.Current))
		}
		created = template
		created.Amount = -amount
		created.Date = time.Now()
		created.PreviousBalance = bal.Current
		created.NewBalance = bal.Current - amount
		id, err := tx.InsertTransaction(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		bal.Current -= amount
		bal.TotalSpent += amount
		return tx.ApplyBalance(ctx, bal)
	})
	if err != nil {
		return Transaction{}, err
	}
	_ = s.cache.Invalidate(ctx)
	created.CreatedAt = time.Now()
	return created, nil
}

// EditTransaction applies an audited correction. The current balance and the
// funded/spent totals move by the amount delta; earlier and later rows keep
// the previous/new balances they were created with.
func (s *Service) EditTransaction(ctx context.Context, input EditTransactionInput) (Transaction, error) {
	if input.Reason == "" {
		return Transaction{}, ErrEditReasonRequired
	}

	var existing, updated Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bal, err := tx.BalanceForUpdate(ctx)
		if err != nil {
			return err
		}
		// Read under the balance lock so concurrent edits of the same row
		// compute their delta from the amount the previous edit left behind.
		existing, err = tx.GetTransaction(ctx, input.ID)
		if err != nil {
			return err
		}
		if existing.Status == StatusVoid {
			return errors.New("safe: cannot edit a void transaction")
		}

		updated = existing
		if input.Description != nil {
			updated.Description = *input.Description
		}
		var delta float64
		if input.Amount != nil {
			newAmount := *input.Amount
			if existing.Amount < 0 {
				// Deductions stay deductions: clients submit magnitudes.
				newAmount = -abs(newAmount)
			} else if newAmount <= 0 {
				return ErrInvalidAmount
			}
			delta = newAmount - existing.Amount
			updated.Amount = newAmount
			updated.NewBalance = updated.PreviousBalance + newAmount
		}

		now := time.Now()
		updated.IsEdited = true
		updated.EditReason = &input.Reason
		updated.EditedBy = &input.EditedBy
		updated.EditedAt = &now

		if err := tx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		if delta != 0 {
			bal.Current += delta
			if existing.Type == TypeFunding {
				bal.TotalFunded += delta
			} else {
				bal.TotalSpent -= delta
			}
			if bal.Current < 0 {
				return fmt.Errorf("%w: edit would overdraw the safe", ErrInsufficientFunds)
			}
			return tx.ApplyBalance(ctx, bal)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	_ = s.cache.Invalidate(ctx)

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.EditedBy,
			Action:   "safe.transaction.edit",
			Entity:   "safe_transaction",
			EntityID: strconv.FormatInt(existing.ID, 10),
			Meta: map[string]any{
				"reason":     input.Reason,
				"old_amount": existing.Amount,
				"new_amount": updated.Amount,
			},
		})
	}
	return updated, nil
}

// PaymentVerifier answers whether payroll recorded a payment matching a
// pending salary transaction.
type PaymentVerifier interface {
	HasPayment(ctx context.Context, employeeID int64, amount float64, since time.Time) (bool, error)
}

// ReconcileResult summarises a reconciliation pass.
type ReconcileResult struct {
	Confirmed int
	Voided    int
}

// ReconcilePending settles PENDING salary transactions older than gracePeriod:
// entries backed by a payroll payment are confirmed, stale entries are voided
// and their amount returned to the balance.
func (s *Service) ReconcilePending(ctx context.Context, verifier PaymentVerifier, gracePeriod time.Duration) (ReconcileResult, error) {
	var result ReconcileResult
	pending, err := s.repo.ListPending(ctx, time.Now().Add(-gracePeriod))
	if err != nil {
		return result, err
	}
	for _, t := range pending {
		matched := false
		if verifier != nil && t.EmployeeID != nil {
			matched, err = verifier.HasPayment(ctx, *t.EmployeeID, -t.Amount, t.CreatedAt.Add(-time.Hour))
			if err != nil {
				return result, err
			}
		}
		if matched {
			if err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				return tx.SetStatus(ctx, t.ID, StatusConfirmed)
			}); err != nil {
				return result, err
			}
			result.Confirmed++
			continue
		}
		refund := -t.Amount
		if err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			bal, err := tx.BalanceForUpdate(ctx)
			if err != nil {
				return err
			}
			if err := tx.SetStatus(ctx, t.ID, StatusVoid); err != nil {
				return err
			}
			bal.Current += refund
			bal.TotalSpent -= refund
			return tx.ApplyBalance(ctx, bal)
		}); err != nil {
			return result, err
		}
		result.Voided++
	}
	if result.Confirmed+result.Voided > 0 {
		_ = s.cache.Invalidate(ctx)
	}
	return result, nil
}

// CheckIntegrity recomputes totals from the transaction list and compares
// them with the balance row. Non-empty findings mean the ledger needs manual
// attention.
func (s *Service) CheckIntegrity(ctx context.Context) ([]string, error) {
	state, err := s.repo.State(ctx, 0)
	if err != nil {
		return nil, err
	}
	var funded, spent float64
	for _, t := range state.Transactions {
		if t.Amount >= 0 {
			funded += t.Amount
		} else {
			spent += -t.Amount
		}
	}
	var findings []string
	if !closeEnough(state.CurrentBalance, state.TotalFunded-state.TotalSpent) {
		findings = append(findings, fmt.Sprintf("balance %s does not equal funded-spent %s",
			formatAmount(state.CurrentBalance), formatAmount(state.TotalFunded-state.TotalSpent)))
	}
	if !closeEnough(funded, state.TotalFunded) {
		findings = append(findings, fmt.Sprintf("transaction sum funded %s disagrees with total %s",
			formatAmount(funded), formatAmount(state.TotalFunded)))
	}
	if !closeEnough(spent, state.TotalSpent) {
		findings = append(findings, fmt.Sprintf("transaction sum spent %s disagrees with total %s",
			formatAmount(spent), formatAmount(state.TotalSpent)))
	}
	return findings, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func closeEnough(a, b float64) bool {
	return abs(a-b) < 0.005
}
