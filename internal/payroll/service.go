package payroll

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brickworks-erp/brickworks/internal/safe"
)

const (
	workingDaysPerMonth = 22
	overtimeHoursPaid   = 10
)

var (
	// ErrEmployeeInactive rejects payments to terminated employees.
	ErrEmployeeInactive = errors.New("payroll: employee is not active")
	// ErrExceedsRemaining rejects payments larger than what is still owed.
	ErrExceedsRemaining = errors.New("payroll: amount exceeds remaining salary")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("payroll: amount must be positive")
)

// SafeLedger is the slice of the safe service payroll needs.
type SafeLedger interface {
	DeductForSalary(ctx context.Context, input safe.SalaryDeductionInput) (safe.Transaction, error)
}

// Service implements payroll rules.
type Service struct {
	repo Repository
	safe SafeLedger
}

// NewService constructs a Service.
func NewService(repo Repository, ledger SafeLedger) *Service {
	return &Service{repo: repo, safe: ledger}
}

// CalculateMonthlySalary derives the monthly pay from the employee record.
// Pure: no I/O, no mutation. A flat monthly_salary wins; otherwise the
// legacy component form applies. Negative results clamp to zero.
func CalculateMonthlySalary(e Employee) float64 {
	if e.MonthlySalary != nil && *e.MonthlySalary > 0 {
		return *e.MonthlySalary
	}
	total := e.BaseSalary + e.DailyBonus*workingDaysPerMonth + e.OvertimePay*overtimeHoursPaid - e.Deductions
	if total < 0 {
		return 0
	}
	return total
}

// RemainingSummary reports what an employee is still owed this month.
type RemainingSummary struct {
	EmployeeID int64   `json:"employee_id"`
	Monthly    float64 `json:"monthly_salary"`
	Paid       float64 `json:"paid_this_month"`
	Remaining  float64 `json:"remaining"`
}

// RemainingSalary computes the unpaid portion of the current month. When the
// payment history cannot be read the full monthly salary is reported, as if
// nothing had been paid yet.
func (s *Service) RemainingSalary(ctx context.Context, employeeID int64) (RemainingSummary, error) {
	employee, err := s.repo.Get(ctx, employeeID)
	if err != nil {
		return RemainingSummary{}, err
	}
	monthly := CalculateMonthlySalary(employee)
	summary := RemainingSummary{EmployeeID: employeeID, Monthly: monthly, Remaining: monthly}

	paid, err := s.repo.SumPaymentsSince(ctx, employeeID, monthStart(time.Now()))
	if err != nil {
		return summary, nil
	}
	summary.Paid = paid
	summary.Remaining = monthly - paid
	if summary.Remaining < 0 {
		summary.Remaining = 0
	}
	return summary, nil
}

// PaySalary deducts the amount from the safe and records the payment. The
// safe rejects the deduction when the balance does not cover it.
func (s *Service) PaySalary(ctx context.Context, input PaySalaryInput) (Payment, error) {
	if input.Amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	employee, err := s.repo.Get(ctx, input.EmployeeID)
	if err != nil {
		return Payment{}, err
	}
	if employee.Status != StatusActive {
		return Payment{}, ErrEmployeeInactive
	}
	remaining, err := s.RemainingSalary(ctx, input.EmployeeID)
	if err != nil {
		return Payment{}, err
	}
	if input.Amount > remaining.Remaining {
		return Payment{}, ErrExceedsRemaining
	}

	tx, err := s.safe.DeductForSalary(ctx, safe.SalaryDeductionInput{
		Amount:       input.Amount,
		EmployeeID:   &employee.ID,
		EmployeeName: employee.Name,
		Reason:       input.Note,
		CreatedBy:    input.CreatedBy,
	})
	if err != nil {
		return Payment{}, err
	}

	payment := Payment{
		EmployeeID:        employee.ID,
		Amount:            input.Amount,
		Note:              input.Note,
		SafeTransactionID: &tx.ID,
		PaidAt:            time.Now(),
		CreatedBy:         input.CreatedBy,
	}
	id, err := s.repo.InsertPayment(ctx, payment)
	if err != nil {
		// The safe deduction stands; the integrity scan will flag the
		// missing payment record.
		return Payment{}, err
	}
	payment.ID = id
	return payment, nil
}

// PaymentHistory lists disbursements for an employee, most recent first.
func (s *Service) PaymentHistory(ctx context.Context, employeeID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, employeeID)
}

// DuePayments lists active employees still owed money this month. The
// per-employee history reads run concurrently.
func (s *Service) DuePayments(ctx context.Context) ([]DuePayment, error) {
	employees, err := s.repo.List(ctx, ListEmployeesRequest{Status: StatusActive})
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	due := make([]DuePayment, 0, len(employees))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, employee := range employees {
		g.Go(func() error {
			summary, err := s.RemainingSalary(ctx, employee.ID)
			if err != nil {
				return err
			}
			if summary.Remaining <= 0 {
				return nil
			}
			mu.Lock()
			due = append(due, DuePayment{
				Employee:  employee,
				Monthly:   summary.Monthly,
				Paid:      summary.Paid,
				Remaining: summary.Remaining,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return due, nil
}

// List returns employees matching the filter.
func (s *Service) List(ctx context.Context, req ListEmployeesRequest) ([]Employee, error) {
	return s.repo.List(ctx, req)
}

// Get returns one employee.
func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	return s.repo.Get(ctx, id)
}

// Create adds an employee.
func (s *Service) Create(ctx context.Context, input CreateEmployeeInput) (Employee, error) {
	if input.Name == "" {
		return Employee{}, errors.New("payroll: name required")
	}
	return s.repo.Create(ctx, input)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, input UpdateEmployeeInput) (Employee, error) {
	return s.repo.Update(ctx, id, input)
}

// Terminate marks an employee terminated. Payment history is kept.
func (s *Service) Terminate(ctx context.Context, id int64) error {
	return s.repo.SetStatus(ctx, id, StatusTerminated)
}

// Positions lists the distinct positions in use.
func (s *Service) Positions(ctx context.Context) ([]string, error) {
	return s.repo.Positions(ctx)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
