package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickworks-erp/brickworks/internal/platform/db"
)

// ErrNotFound indicates a missing invoice.
var ErrNotFound = errors.New("invoices: not found")

// PaidAccrual reports the assignment's spend totals after a payment landed.
type PaidAccrual struct {
	ActualAmount    float64
	EstimatedAmount float64
	BudgetExhausted bool
}

// Repository defines invoice persistence.
type Repository interface {
	List(ctx context.Context, req ListInvoicesRequest) ([]CategoryInvoice, error)
	Get(ctx context.Context, id int64) (CategoryInvoice, error)
	Create(ctx context.Context, projectID int64, input CreateInvoiceInput) (CategoryInvoice, error)
	SetApproved(ctx context.Context, id int64, at time.Time) error
	SetPaid(ctx context.Context, id int64, at time.Time, safeTransactionID, assignmentID int64, amount float64) (PaidAccrual, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const invoiceColumns = `id, project_id, assignment_id, invoice_number, amount, description, status,
	safe_transaction_id, created_by, created_at, approved_at, paid_at`

func scanInvoice(row pgx.Row) (CategoryInvoice, error) {
	var inv CategoryInvoice
	err := row.Scan(&inv.ID, &inv.ProjectID, &inv.AssignmentID, &inv.InvoiceNumber, &inv.Amount,
		&inv.Description, &inv.Status, &inv.SafeTransactionID, &inv.CreatedBy, &inv.CreatedAt,
		&inv.ApprovedAt, &inv.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CategoryInvoice{}, ErrNotFound
	}
	return inv, err
}

func (r *pgRepository) List(ctx context.Context, req ListInvoicesRequest) ([]CategoryInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM category_invoices WHERE 1=1`
	args := []any{}
	if req.ProjectID > 0 {
		args = append(args, req.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if req.Status != "" {
		args = append(args, req.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []CategoryInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (CategoryInvoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM category_invoices WHERE id = $1`, id))
}

func (r *pgRepository) Create(ctx context.Context, projectID int64, input CreateInvoiceInput) (CategoryInvoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx,
		`INSERT INTO category_invoices (project_id, assignment_id, invoice_number, amount, description, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, 'draft', $6)
		 RETURNING `+invoiceColumns,
		projectID, input.AssignmentID, input.InvoiceNumber, input.Amount, input.Description, input.CreatedBy))
}

func (r *pgRepository) SetApproved(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE category_invoices SET status = 'approved', approved_at = $2 WHERE id = $1 AND status = 'draft'`,
		id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaid marks the invoice paid and accumulates its amount on the
// assignment's actual spend in one transaction, so a paid invoice can never
// exist without the matching accrual.
func (r *pgRepository) SetPaid(ctx context.Context, id int64, at time.Time, safeTransactionID, assignmentID int64, amount float64) (PaidAccrual, error) {
	var accrual PaidAccrual
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE category_invoices SET status = 'paid', paid_at = $2, safe_transaction_id = $3
			 WHERE id = $1 AND status = 'approved'`,
			id, at, safeTransactionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return tx.QueryRow(ctx,
			`UPDATE category_assignments
			 SET actual_amount = actual_amount + $2,
			     budget_exhausted = (actual_amount + $2) >= estimated_amount,
			     updated_at = now()
			 WHERE id = $1
			 RETURNING actual_amount, estimated_amount, budget_exhausted`,
			assignmentID, amount,
		).Scan(&accrual.ActualAmount, &accrual.EstimatedAmount, &accrual.BudgetExhausted)
	})
	if err != nil {
		return PaidAccrual{}, err
	}
	return accrual, nil
}
