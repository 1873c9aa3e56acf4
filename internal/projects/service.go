package projects

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/brickworks-erp/brickworks/internal/shared"
)

var (
	// ErrMissingFields indicates a draft row with empty required fields.
	ErrMissingFields = errors.New("projects: main category, subcategory and contractor are required")
	// ErrUnknownContractor indicates the contractor id does not exist.
	ErrUnknownContractor = errors.New("projects: contractor does not exist")
	// ErrUnknownCategory indicates the main category is not in the catalog.
	ErrUnknownCategory = errors.New("projects: unknown main category")
	// ErrUnknownSubcategory indicates the subcategory is not under the main category.
	ErrUnknownSubcategory = errors.New("projects: subcategory does not belong to category")
	// ErrInvalidEstimate indicates a non-positive estimated amount.
	ErrInvalidEstimate = errors.New("projects: estimated amount must be positive")
	// ErrAssignmentProtected blocks edits and deletes once an invoice is approved.
	ErrAssignmentProtected = errors.New("projects: assignment has an approved invoice")
)

// Service implements project, contractor and assignment rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	return s.repo.ListProjects(ctx)
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id int64) (Project, error) {
	return s.repo.GetProject(ctx, id)
}

// CreateProject adds a project.
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (Project, error) {
	if input.Name == "" {
		return Project{}, errors.New("projects: name required")
	}
	return s.repo.CreateProject(ctx, input)
}

// Assignments lists a project's category assignments.
func (s *Service) Assignments(ctx context.Context, projectID int64) ([]CategoryAssignment, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListAssignments(ctx, projectID)
}

// AddAssignments validates and persists a batch of draft rows. Checks run in
// a fixed order and the first failure rejects the whole batch: required
// fields, contractor exists, main category in catalog, subcategory under it,
// positive estimate, then tuple uniqueness against both the batch so far and
// the persisted list. Nothing is written on failure.
func (s *Service) AddAssignments(ctx context.Context, projectID int64, drafts []AssignmentDraft) ([]CategoryAssignment, error) {
	if len(drafts) == 0 {
		return nil, errors.New("projects: no assignments to add")
	}
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	persisted, err := s.repo.ListAssignments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	taken := make(map[assignmentTuple]bool, len(persisted))
	for _, a := range persisted {
		taken[a.tuple()] = true
	}

	batch := make([]CategoryAssignment, 0, len(drafts))
	for i, draft := range drafts {
		contractor, err := s.validateDraft(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if taken[draft.tuple()] {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrDuplicateAssignment)
		}
		taken[draft.tuple()] = true
		batch = append(batch, CategoryAssignment{
			MainCategory:    draft.MainCategory,
			Subcategory:     draft.Subcategory,
			ContractorID:    contractor.ID,
			ContractorName:  contractor.FullName,
			EstimatedAmount: draft.EstimatedAmount,
		})
	}
	return s.repo.InsertAssignments(ctx, projectID, batch)
}

// EditAssignment replaces exactly one persisted row. The duplicate check
// skips the row being edited so an unchanged tuple does not collide with
// itself. The persisted list length never changes.
func (s *Service) EditAssignment(ctx context.Context, projectID, assignmentID int64, draft AssignmentDraft) (CategoryAssignment, error) {
	current, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return CategoryAssignment{}, err
	}
	if current.ProjectID != projectID {
		return CategoryAssignment{}, ErrNotFound
	}
	if current.HasApprovedInvoice {
		return CategoryAssignment{}, ErrAssignmentProtected
	}
	contractor, err := s.validateDraft(ctx, draft)
	if err != nil {
		return CategoryAssignment{}, err
	}
	persisted, err := s.repo.ListAssignments(ctx, projectID)
	if err != nil {
		return CategoryAssignment{}, err
	}
	for _, a := range persisted {
		if a.ID != assignmentID && a.tuple() == draft.tuple() {
			return CategoryAssignment{}, ErrDuplicateAssignment
		}
	}

	current.MainCategory = draft.MainCategory
	current.Subcategory = draft.Subcategory
	current.ContractorID = contractor.ID
	current.ContractorName = contractor.FullName
	current.EstimatedAmount = draft.EstimatedAmount
	return s.repo.UpdateAssignment(ctx, current)
}

// DeleteAssignment removes a row unless an approved invoice protects it.
func (s *Service) DeleteAssignment(ctx context.Context, projectID, assignmentID, deletedBy int64) error {
	current, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if current.ProjectID != projectID {
		return ErrNotFound
	}
	if current.HasApprovedInvoice {
		return ErrAssignmentProtected
	}
	if err := s.repo.DeleteAssignment(ctx, assignmentID); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  deletedBy,
			Action:   "projects.assignment.delete",
			Entity:   "category_assignment",
			EntityID: strconv.FormatInt(assignmentID, 10),
			Meta: map[string]any{
				"project_id":    projectID,
				"main_category": current.MainCategory,
				"subcategory":   current.Subcategory,
			},
		})
	}
	return nil
}

// MarkAssignmentApproved flags the assignment as protected. Called by the
// invoice approval flow.
func (s *Service) MarkAssignmentApproved(ctx context.Context, assignmentID int64) error {
	return s.repo.SetApprovedInvoice(ctx, assignmentID, true)
}

// GetAssignment returns one assignment row.
func (s *Service) GetAssignment(ctx context.Context, assignmentID int64) (CategoryAssignment, error) {
	return s.repo.GetAssignment(ctx, assignmentID)
}

func (s *Service) validateDraft(ctx context.Context, draft AssignmentDraft) (Contractor, error) {
	if draft.MainCategory == "" || draft.Subcategory == "" || draft.ContractorID == 0 {
		return Contractor{}, ErrMissingFields
	}
	contractor, err := s.repo.GetContractor(ctx, draft.ContractorID)
	if errors.Is(err, ErrNotFound) {
		return Contractor{}, ErrUnknownContractor
	}
	if err != nil {
		return Contractor{}, err
	}
	if !CatalogHasCategory(draft.MainCategory) {
		return Contractor{}, ErrUnknownCategory
	}
	if !CatalogHasSubcategory(draft.MainCategory, draft.Subcategory) {
		return Contractor{}, ErrUnknownSubcategory
	}
	if draft.EstimatedAmount <= 0 {
		return Contractor{}, ErrInvalidEstimate
	}
	return contractor, nil
}

// ContractorResult carries an optional duplicate-name warning. A duplicate
// full name is legal; the console surfaces the warning only.
type ContractorResult struct {
	Contractor Contractor `json:"contractor"`
	Warning    string     `json:"warning,omitempty"`
}

// ListContractors returns all contractors.
func (s *Service) ListContractors(ctx context.Context) ([]Contractor, error) {
	return s.repo.ListContractors(ctx)
}

// CreateContractor adds a contractor, warning on a duplicate full name.
func (s *Service) CreateContractor(ctx context.Context, input ContractorInput) (ContractorResult, error) {
	if input.FullName == "" {
		return ContractorResult{}, errors.New("projects: contractor name required")
	}
	existing, err := s.repo.CountContractorsByName(ctx, input.FullName)
	if err != nil {
		return ContractorResult{}, err
	}
	created, err := s.repo.CreateContractor(ctx, input)
	if err != nil {
		return ContractorResult{}, err
	}
	result := ContractorResult{Contractor: created}
	if existing > 0 {
		result.Warning = fmt.Sprintf("a contractor named %q already exists", input.FullName)
	}
	return result, nil
}

// UpdateContractor replaces contractor fields.
func (s *Service) UpdateContractor(ctx context.Context, id int64, input ContractorInput) (Contractor, error) {
	return s.repo.UpdateContractor(ctx, id, input)
}

// DeleteContractor removes a contractor. Assignments referencing it keep the
// database from deleting via the foreign key; that error surfaces as-is.
func (s *Service) DeleteContractor(ctx context.Context, id int64) error {
	return s.repo.DeleteContractor(ctx, id)
}
