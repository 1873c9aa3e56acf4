package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing expense.
var ErrNotFound = errors.New("expenses: not found")

// Repository defines expense persistence.
type Repository interface {
	List(ctx context.Context, req ListExpensesRequest) ([]Expense, int, error)
	Get(ctx context.Context, id int64) (Expense, error)
	Insert(ctx context.Context, e Expense) (Expense, error)
	Delete(ctx context.Context, id int64) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const expenseColumns = `id, description, category, amount, safe_transaction_id, created_by, created_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Description, &e.Category, &e.Amount, &e.SafeTransactionID, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	return e, err
}

func (r *pgRepository) List(ctx context.Context, req ListExpensesRequest) ([]Expense, int, error) {
	where := ` FROM general_expenses WHERE 1=1`
	args := []any{}
	if req.Category != "" {
		args = append(args, req.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if req.Year > 0 && req.Month > 0 {
		start := time.Date(req.Year, req.Month, 1, 0, 0, 0, 0, time.UTC)
		args = append(args, start, start.AddDate(0, 1, 0))
		where += fmt.Sprintf(" AND created_at >= $%d AND created_at < $%d", len(args)-1, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	query := `SELECT ` + expenseColumns + where + ` ORDER BY created_at DESC`
	if req.PerPage > 0 {
		page := req.Page
		if page <= 0 {
			page = 1
		}
		args = append(args, req.PerPage, (page-1)*req.PerPage)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM general_expenses WHERE id = $1`, id))
}

func (r *pgRepository) Insert(ctx context.Context, e Expense) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx,
		`INSERT INTO general_expenses (description, category, amount, safe_transaction_id, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+expenseColumns,
		e.Description, e.Category, e.Amount, e.SafeTransactionID, e.CreatedBy))
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM general_expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
