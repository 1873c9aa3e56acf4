package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickworks-erp/brickworks/internal/platform/db"
)

var (
	// ErrNotFound indicates a missing project, contractor or assignment.
	ErrNotFound = errors.New("projects: not found")
	// ErrDuplicateAssignment indicates the (main, sub, contractor) tuple is taken.
	ErrDuplicateAssignment = errors.New("projects: duplicate category assignment")
)

// Repository defines project persistence.
type Repository interface {
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id int64) (Project, error)
	CreateProject(ctx context.Context, input CreateProjectInput) (Project, error)

	ListContractors(ctx context.Context) ([]Contractor, error)
	GetContractor(ctx context.Context, id int64) (Contractor, error)
	CountContractorsByName(ctx context.Context, fullName string) (int, error)
	CreateContractor(ctx context.Context, input ContractorInput) (Contractor, error)
	UpdateContractor(ctx context.Context, id int64, input ContractorInput) (Contractor, error)
	DeleteContractor(ctx context.Context, id int64) error

	ListAssignments(ctx context.Context, projectID int64) ([]CategoryAssignment, error)
	GetAssignment(ctx context.Context, id int64) (CategoryAssignment, error)
	InsertAssignments(ctx context.Context, projectID int64, rows []CategoryAssignment) ([]CategoryAssignment, error)
	UpdateAssignment(ctx context.Context, row CategoryAssignment) (CategoryAssignment, error)
	DeleteAssignment(ctx context.Context, id int64) error
	SetApprovedInvoice(ctx context.Context, id int64, approved bool) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, location, budget, status, created_at, updated_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, location, budget, status, created_at, updated_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Location, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

func (r *pgRepository) CreateProject(ctx context.Context, input CreateProjectInput) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx,
		`INSERT INTO projects (name, location, budget, status)
		 VALUES ($1, $2, $3, 'active')
		 RETURNING id, name, location, budget, status, created_at, updated_at`,
		input.Name, input.Location, input.Budget).
		Scan(&p.ID, &p.Name, &p.Location, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

const contractorColumns = `id, full_name, phone_number, category, notes, created_at`

func scanContractor(row pgx.Row) (Contractor, error) {
	var c Contractor
	err := row.Scan(&c.ID, &c.FullName, &c.PhoneNumber, &c.Category, &c.Notes, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contractor{}, ErrNotFound
	}
	return c, err
}

func (r *pgRepository) ListContractors(ctx context.Context) ([]Contractor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contractorColumns+` FROM contractors ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("list contractors: %w", err)
	}
	defer rows.Close()

	var out []Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgRepository) GetContractor(ctx context.Context, id int64) (Contractor, error) {
	return scanContractor(r.pool.QueryRow(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id))
}

func (r *pgRepository) CountContractorsByName(ctx context.Context, fullName string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM contractors WHERE lower(full_name) = lower($1)`, fullName).Scan(&count)
	return count, err
}

func (r *pgRepository) CreateContractor(ctx context.Context, input ContractorInput) (Contractor, error) {
	return scanContractor(r.pool.QueryRow(ctx,
		`INSERT INTO contractors (full_name, phone_number, category, notes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+contractorColumns,
		input.FullName, input.PhoneNumber, input.Category, input.Notes))
}

func (r *pgRepository) UpdateContractor(ctx context.Context, id int64, input ContractorInput) (Contractor, error) {
	return scanContractor(r.pool.QueryRow(ctx,
		`UPDATE contractors
		 SET full_name = $2, phone_number = $3, category = $4, notes = $5
		 WHERE id = $1
		 RETURNING `+contractorColumns,
		id, input.FullName, input.PhoneNumber, input.Category, input.Notes))
}

func (r *pgRepository) DeleteContractor(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contractors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const assignmentColumns = `a.id, a.project_id, a.main_category, a.subcategory, a.contractor_id,
	c.full_name, a.estimated_amount, a.actual_amount, a.has_approved_invoice, a.budget_exhausted,
	a.created_at, a.updated_at`

func scanAssignment(row pgx.Row) (CategoryAssignment, error) {
	var a CategoryAssignment
	err := row.Scan(&a.ID, &a.ProjectID, &a.MainCategory, &a.Subcategory, &a.ContractorID,
		&a.ContractorName, &a.EstimatedAmount, &a.ActualAmount, &a.HasApprovedInvoice,
		&a.BudgetExhausted, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CategoryAssignment{}, ErrNotFound
	}
	return a, err
}

func (r *pgRepository) ListAssignments(ctx context.Context, projectID int64) ([]CategoryAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+`
		 FROM category_assignments a
		 JOIN contractors c ON c.id = a.contractor_id
		 WHERE a.project_id = $1
		 ORDER BY a.main_category, a.subcategory`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []CategoryAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgRepository) GetAssignment(ctx context.Context, id int64) (CategoryAssignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+`
		 FROM category_assignments a
		 JOIN contractors c ON c.id = a.contractor_id
		 WHERE a.id = $1`, id))
}

// InsertAssignments writes the batch in one transaction. The unique index on
// (project_id, main_category, subcategory, contractor_id) backstops the
// service-level duplicate check against concurrent writers.
func (r *pgRepository) InsertAssignments(ctx context.Context, projectID int64, batch []CategoryAssignment) ([]CategoryAssignment, error) {
	out := make([]CategoryAssignment, 0, len(batch))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, row := range batch {
			var id int64
			err := tx.QueryRow(ctx,
				`INSERT INTO category_assignments (project_id, main_category, subcategory, contractor_id, estimated_amount)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				projectID, row.MainCategory, row.Subcategory, row.ContractorID, row.EstimatedAmount).Scan(&id)
			if err != nil {
				return mapAssignmentError(err)
			}
			row.ID = id
			row.ProjectID = projectID
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgRepository) UpdateAssignment(ctx context.Context, row CategoryAssignment) (CategoryAssignment, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE category_assignments
		 SET main_category = $2, subcategory = $3, contractor_id = $4, estimated_amount = $5, updated_at = now()
		 WHERE id = $1`,
		row.ID, row.MainCategory, row.Subcategory, row.ContractorID, row.EstimatedAmount)
	if err != nil {
		return CategoryAssignment{}, mapAssignmentError(err)
	}
	if tag.RowsAffected() == 0 {
		return CategoryAssignment{}, ErrNotFound
	}
	return r.GetAssignment(ctx, row.ID)
}

func (r *pgRepository) DeleteAssignment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM category_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetApprovedInvoice(ctx context.Context, id int64, approved bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE category_assignments SET has_approved_invoice = $2, updated_at = now() WHERE id = $1`,
		id, approved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapAssignmentError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "category_assignments") {
		return ErrDuplicateAssignment
	}
	return err
}
