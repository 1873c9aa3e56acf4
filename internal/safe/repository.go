package safe

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing transaction.
var ErrNotFound = errors.New("safe: transaction not found")

// Repository defines safe ledger persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	State(ctx context.Context, limit int) (State, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListPending(ctx context.Context, olderThan time.Time) ([]Transaction, error)
}

// TxRepository exposes operations inside a ledger transaction. The balance
// row is locked for the duration, which is what makes check-and-deduct
// atomic across concurrent callers.
type TxRepository interface {
	BalanceForUpdate(ctx context.Context) (Balance, error)
	ApplyBalance(ctx context.Context, bal Balance) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, tx Transaction) error
	SetStatus(ctx context.Context, id int64, status TransactionStatus) error
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTxRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const transactionColumns = `id, type, amount, description, occurred_at, project_id, project_name, invoice_number, employee_id, employee_name, expense_category, previous_balance, new_balance, status, batch_number, funding_source, funding_notes, is_edited, edit_reason, edited_by, edited_at, created_by, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Type, &t.Amount, &t.Description, &t.Date, &t.ProjectID, &t.ProjectName,
		&t.InvoiceNumber, &t.EmployeeID, &t.EmployeeName, &t.ExpenseCategory, &t.PreviousBalance,
		&t.NewBalance, &t.Status, &t.BatchNumber, &t.FundingSource, &t.FundingNotes, &t.IsEdited,
		&t.EditReason, &t.EditedBy, &t.EditedAt, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

// State loads the snapshot. limit <= 0 loads the full history (used by the
// integrity scan); callers serving the console pass a window. Both reads run
// in one repeatable-read transaction so the balance row and the history
// describe the same moment; otherwise a deduction committing between the two
// queries shows up as drift that never existed.
func (r *pgRepository) State(ctx context.Context, limit int) (State, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return State{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var state State
	err = tx.QueryRow(ctx, `SELECT current_balance, total_funded, total_spent FROM safe_balance WHERE id = 1`).
		Scan(&state.CurrentBalance, &state.TotalFunded, &state.TotalSpent)
	if err != nil {
		return State{}, err
	}

	query := `SELECT ` + transactionColumns + ` FROM safe_transactions WHERE status <> 'VOID' ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return State{}, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return State{}, err
		}
		state.Transactions = append(state.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return State{}, err
	}
	rows.Close()
	if err := tx.Commit(ctx); err != nil {
		return State{}, err
	}
	return state, nil
}

func (r *pgRepository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM safe_transactions WHERE id = $1`, id))
}

func (r *pgRepository) ListPending(ctx context.Context, olderThan time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM safe_transactions WHERE status = 'PENDING' AND created_at < $1 ORDER BY created_at`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) BalanceForUpdate(ctx context.Context) (Balance, error) {
	var bal Balance
	err := r.tx.QueryRow(ctx, `SELECT current_balance, total_funded, total_spent FROM safe_balance WHERE id = 1 FOR UPDATE`).
		Scan(&bal.Current, &bal.TotalFunded, &bal.TotalSpent)
	return bal, err
}

func (r *pgTxRepository) ApplyBalance(ctx context.Context, bal Balance) error {
	_, err := r.tx.Exec(ctx, `UPDATE safe_balance SET current_balance = $1, total_funded = $2, total_spent = $3, updated_at = NOW() WHERE id = 1`,
		bal.Current, bal.TotalFunded, bal.TotalSpent)
	return err
}

func (r *pgTxRepository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM safe_transactions WHERE id = $1`, id))
}

func (r *pgTxRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO safe_transactions
(type, amount, description, occurred_at, project_id, project_name, invoice_number, employee_id, employee_name, expense_category, previous_balance, new_balance, status, batch_number, funding_source, funding_notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
RETURNING id`,
		t.Type, t.Amount, t.Description, t.Date, t.ProjectID, t.ProjectName, t.InvoiceNumber,
		t.EmployeeID, t.EmployeeName, t.ExpenseCategory, t.PreviousBalance, t.NewBalance,
		t.Status, t.BatchNumber, t.FundingSource, t.FundingNotes, t.CreatedBy).Scan(&id)
	return id, err
}

func (r *pgTxRepository) UpdateTransaction(ctx context.Context, t Transaction) error {
	tag, err := r.tx.Exec(ctx, `UPDATE safe_transactions SET amount = $2, description = $3, new_balance = $4, is_edited = TRUE, edit_reason = $5, edited_by = $6, edited_at = $7 WHERE id = $1`,
		t.ID, t.Amount, t.Description, t.NewBalance, t.EditReason, t.EditedBy, t.EditedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) SetStatus(ctx context.Context, id int64, status TransactionStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE safe_transactions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
