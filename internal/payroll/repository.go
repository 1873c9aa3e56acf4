package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing employee or payment.
var ErrNotFound = errors.New("payroll: not found")

// Repository defines payroll persistence.
type Repository interface {
	List(ctx context.Context, req ListEmployeesRequest) ([]Employee, error)
	Get(ctx context.Context, id int64) (Employee, error)
	Create(ctx context.Context, input CreateEmployeeInput) (Employee, error)
	Update(ctx context.Context, id int64, input UpdateEmployeeInput) (Employee, error)
	SetStatus(ctx context.Context, id int64, status EmployeeStatus) error
	Positions(ctx context.Context) ([]string, error)

	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	ListPayments(ctx context.Context, employeeID int64) ([]Payment, error)
	SumPaymentsSince(ctx context.Context, employeeID int64, since time.Time) (float64, error)
	HasPayment(ctx context.Context, employeeID int64, amount float64, since time.Time) (bool, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const employeeColumns = `id, name, position, phone, monthly_salary, base_salary, daily_bonus, overtime_pay, deductions, status, last_payment_date, assigned_project_id, created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Position, &e.Phone, &e.MonthlySalary, &e.BaseSalary,
		&e.DailyBonus, &e.OvertimePay, &e.Deductions, &e.Status, &e.LastPaymentDate,
		&e.AssignedProjectID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	return e, nil
}

func (r *pgRepository) List(ctx context.Context, req ListEmployeesRequest) ([]Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	var conditions []string
	var args []any
	if req.Status != "" {
		args = append(args, req.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.ProjectID != 0 {
		args = append(args, req.ProjectID)
		conditions = append(conditions, fmt.Sprintf("assigned_project_id = $%d", len(args)))
	}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var employees []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

func (r *pgRepository) Create(ctx context.Context, input CreateEmployeeInput) (Employee, error) {
	var monthly *float64
	if input.MonthlySalary > 0 {
		monthly = &input.MonthlySalary
	}
	return scanEmployee(r.pool.QueryRow(ctx, `INSERT INTO employees
(name, position, phone, monthly_salary, base_salary, daily_bonus, overtime_pay, deductions, status, assigned_project_id, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, 'active', $9, NOW(), NOW())
RETURNING `+employeeColumns,
		input.Name, input.Position, input.Phone, monthly, input.BaseSalary,
		input.DailyBonus, input.OvertimePay, input.Deductions, input.AssignedProjectID))
}

func (r *pgRepository) Update(ctx context.Context, id int64, input UpdateEmployeeInput) (Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `UPDATE employees SET
name = COALESCE($2, name),
position = COALESCE($3, position),
phone = COALESCE($4, phone),
monthly_salary = COALESCE($5, monthly_salary),
base_salary = COALESCE($6, base_salary),
daily_bonus = COALESCE($7, daily_bonus),
overtime_pay = COALESCE($8, overtime_pay),
deductions = COALESCE($9, deductions),
status = COALESCE($10, status),
assigned_project_id = COALESCE($11, assigned_project_id),
updated_at = NOW()
WHERE id = $1
RETURNING `+employeeColumns,
		id, input.Name, input.Position, input.Phone, input.MonthlySalary, input.BaseSalary,
		input.DailyBonus, input.OvertimePay, input.Deductions, input.Status, input.AssignedProjectID))
}

func (r *pgRepository) SetStatus(ctx context.Context, id int64, status EmployeeStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE employees SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) Positions(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT position FROM employees WHERE position IS NOT NULL ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var positions []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *pgRepository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO salary_payments (employee_id, amount, note, safe_transaction_id, paid_at, created_by)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6) RETURNING id`,
		payment.EmployeeID, payment.Amount, payment.Note, payment.SafeTransactionID, payment.PaidAt, payment.CreatedBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	_, err = r.pool.Exec(ctx, `UPDATE employees SET last_payment_date = $2, updated_at = NOW() WHERE id = $1`,
		payment.EmployeeID, payment.PaidAt)
	return id, err
}

func (r *pgRepository) ListPayments(ctx context.Context, employeeID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, employee_id, amount, COALESCE(note, ''), safe_transaction_id, paid_at, created_by FROM salary_payments WHERE employee_id = $1 ORDER BY paid_at DESC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.Amount, &p.Note, &p.SafeTransactionID, &p.PaidAt, &p.CreatedBy); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *pgRepository) SumPaymentsSince(ctx context.Context, employeeID int64, since time.Time) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM salary_payments WHERE employee_id = $1 AND paid_at >= $2`, employeeID, since).Scan(&sum)
	return sum, err
}

func (r *pgRepository) HasPayment(ctx context.Context, employeeID int64, amount float64, since time.Time) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM salary_payments WHERE employee_id = $1 AND amount = $2 AND paid_at >= $3`, employeeID, amount, since).Scan(&count)
	return count > 0, err
}
