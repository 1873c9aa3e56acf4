package projects

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryProjectsRepo struct {
	projects    map[int64]Project
	contractors map[int64]Contractor
	assignments map[int64]CategoryAssignment
	nextID      int64
}

func newMemoryProjectsRepo() *memoryProjectsRepo {
	return &memoryProjectsRepo{
		projects:    map[int64]Project{},
		contractors: map[int64]Contractor{},
		assignments: map[int64]CategoryAssignment{},
		nextID:      1,
	}
}

func (m *memoryProjectsRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryProjectsRepo) addProject(name string) Project {
	p := Project{ID: m.id(), Name: name, Status: ProjectActive, CreatedAt: time.Now()}
	m.projects[p.ID] = p
	return p
}

func (m *memoryProjectsRepo) addContractor(name string) Contractor {
	c := Contractor{ID: m.id(), FullName: name, CreatedAt: time.Now()}
	m.contractors[c.ID] = c
	return c
}

func (m *memoryProjectsRepo) ListProjects(context.Context) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryProjectsRepo) GetProject(_ context.Context, id int64) (Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryProjectsRepo) CreateProject(_ context.Context, input CreateProjectInput) (Project, error) {
	p := Project{ID: m.id(), Name: input.Name, Location: input.Location, Budget: input.Budget, Status: ProjectActive}
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryProjectsRepo) ListContractors(context.Context) ([]Contractor, error) {
	var out []Contractor
	for _, c := range m.contractors {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryProjectsRepo) GetContractor(_ context.Context, id int64) (Contractor, error) {
	c, ok := m.contractors[id]
	if !ok {
		return Contractor{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryProjectsRepo) CountContractorsByName(_ context.Context, fullName string) (int, error) {
	count := 0
	for _, c := range m.contractors {
		if c.FullName == fullName {
			count++
		}
	}
	return count, nil
}

func (m *memoryProjectsRepo) CreateContractor(_ context.Context, input ContractorInput) (Contractor, error) {
	c := Contractor{ID: m.id(), FullName: input.FullName, PhoneNumber: input.PhoneNumber,
		Category: input.Category, Notes: input.Notes}
	m.contractors[c.ID] = c
	return c, nil
}

func (m *memoryProjectsRepo) UpdateContractor(_ context.Context, id int64, input ContractorInput) (Contractor, error) {
	c, ok := m.contractors[id]
	if !ok {
		return Contractor{}, ErrNotFound
	}
	c.FullName = input.FullName
	m.contractors[id] = c
	return c, nil
}

func (m *memoryProjectsRepo) DeleteContractor(_ context.Context, id int64) error {
	if _, ok := m.contractors[id]; !ok {
		return ErrNotFound
	}
	delete(m.contractors, id)
	return nil
}

func (m *memoryProjectsRepo) ListAssignments(_ context.Context, projectID int64) ([]CategoryAssignment, error) {
	var out []CategoryAssignment
	for _, a := range m.assignments {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryProjectsRepo) GetAssignment(_ context.Context, id int64) (CategoryAssignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return CategoryAssignment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryProjectsRepo) InsertAssignments(_ context.Context, projectID int64, batch []CategoryAssignment) ([]CategoryAssignment, error) {
	out := make([]CategoryAssignment, 0, len(batch))
	for _, row := range batch {
		row.ID = m.id()
		row.ProjectID = projectID
		m.assignments[row.ID] = row
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryProjectsRepo) UpdateAssignment(_ context.Context, row CategoryAssignment) (CategoryAssignment, error) {
	if _, ok := m.assignments[row.ID]; !ok {
		return CategoryAssignment{}, ErrNotFound
	}
	m.assignments[row.ID] = row
	return row, nil
}

func (m *memoryProjectsRepo) DeleteAssignment(_ context.Context, id int64) error {
	if _, ok := m.assignments[id]; !ok {
		return ErrNotFound
	}
	delete(m.assignments, id)
	return nil
}

func (m *memoryProjectsRepo) SetApprovedInvoice(_ context.Context, id int64, approved bool) error {
	a, ok := m.assignments[id]
	if !ok {
		return ErrNotFound
	}
	a.HasApprovedInvoice = approved
	m.assignments[id] = a
	return nil
}

func draft(main, sub string, contractorID int64, estimate float64) AssignmentDraft {
	return AssignmentDraft{MainCategory: main, Subcategory: sub, ContractorID: contractorID, EstimatedAmount: estimate}
}

func TestAddAssignmentsRejectsDuplicateInBatch(t *testing.T) {
	repo := newMemoryProjectsRepo()
	project := repo.addProject("Tower A")
	contractor := repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)

	_, err := svc.AddAssignments(context.Background(), project.ID, []AssignmentDraft{
		draft("Electrical", "Wiring", contractor.ID, 50000),
		draft("Electrical", "Wiring", contractor.ID, 60000),
	})
	require.ErrorIs(t, err, ErrDuplicateAssignment)
	require.Empty(t, repo.assignments, "failed batch must not be partially applied")
}

func TestAddAssignmentsRejectsDuplicateAgainstPersisted(t *testing.T) {
	repo := newMemoryProjectsRepo()
	project := repo.addProject("Tower A")
	contractor := repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)

	first, err := svc.AddAssignments(context.Background(), project.ID, []AssignmentDraft{
		draft("Electrical", "Wiring", contractor.ID, 50000),
	})
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = svc.AddAssignments(context.Background(), project.ID, []AssignmentDraft{
		draft("Electrical", "Wiring", contractor.ID, 70000),
	})
	require.ErrorIs(t, err, ErrDuplicateAssignment)
	require.Len(t, repo.assignments, 1)
}

func TestAddAssignmentsValidationOrder(t *testing.T) {
	repo := newMemoryProjectsRepo()
	project := repo.addProject("Tower A")
	contractor := repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.AddAssignments(ctx, project.ID, []AssignmentDraft{draft("", "Wiring", contractor.ID, 100)})
	require.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.AddAssignments(ctx, project.ID, []AssignmentDraft{draft("Electrical", "Wiring", 999, 100)})
	require.ErrorIs(t, err, ErrUnknownContractor)

	_, err = svc.AddAssignments(ctx, project.ID, []AssignmentDraft{draft("Demolition", "Wiring", contractor.ID, 100)})
	require.ErrorIs(t, err, ErrUnknownCategory)

	_, err = svc.AddAssignments(ctx, project.ID, []AssignmentDraft{draft("Electrical", "Foundations", contractor.ID, 100)})
	require.ErrorIs(t, err, ErrUnknownSubcategory)

	_, err = svc.AddAssignments(ctx, project.ID, []AssignmentDraft{draft("Electrical", "Wiring", contractor.ID, 0)})
	require.ErrorIs(t, err, ErrInvalidEstimate)
}

func TestEditAssignmentPreservesListLength(t *testing.T) {
	repo := newMemoryProjectsRepo()
	project := repo.addProject("Tower A")
	contractor := repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.AddAssignments(ctx, project.ID, []AssignmentDraft{
		draft("Electrical", "Wiring", contractor.ID, 50000),
		draft("Plumbing", "Drainage", contractor.ID, 30000),
	})
	require.NoError(t, err)

	updated, err := svc.EditAssignment(ctx, project.ID, created[0].ID,
		draft("Electrical", "Wiring", contractor.ID, 80000))
	require.NoError(t, err)
	require.Equal(t, 80000.0, updated.EstimatedAmount)

	list, err := svc.Assignments(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, list, 2, "edit must not change list length")
}

func TestEditAssignmentSkipsSelfInDuplicateCheck(t *testing.T) {
	repo := newMemoryProjectsRepo()
	project := repo.addProject("Tower A")
	contractor := repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.AddAssignments(ctx, project.ID, []AssignmentDraft{
		draft("Electrical", "Wiring", contractor.ID, 50000),
		draft("Plumbing", "Drainage", contractor.ID, 30000),
	})
	require.NoError(t, err)

	// Same tuple, different estimate: must not collide with itself.
	_, err = svc.EditAssignment(ctx, project.ID, created[0].ID,
		draft("Electrical", "Wiring", contractor.ID, 55000))
	require.NoError(t, err)

	// Colliding with the other persisted row still fails.
	_, err = svc.EditAssignment(ctx, project.ID, created[0].ID,
		draft("Plumbing", "Drainage", contractor.ID, 55000))
	require.ErrorIs(t, err, ErrDuplicateAssignment)
}

func TestApprovedInvoiceBlocksEditAndDelete(t *testing.T) {
	repo := newMemoryProjectsRepo()
	project := repo.addProject("Tower A")
	contractor := repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.AddAssignments(ctx, project.ID, []AssignmentDraft{
		draft("Electrical", "Wiring", contractor.ID, 50000),
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkAssignmentApproved(ctx, created[0].ID))

	_, err = svc.EditAssignment(ctx, project.ID, created[0].ID,
		draft("Electrical", "Lighting", contractor.ID, 10000))
	require.ErrorIs(t, err, ErrAssignmentProtected)

	err = svc.DeleteAssignment(ctx, project.ID, created[0].ID, 1)
	require.ErrorIs(t, err, ErrAssignmentProtected)
	require.Len(t, repo.assignments, 1)
}

func TestCreateContractorWarnsOnDuplicateName(t *testing.T) {
	repo := newMemoryProjectsRepo()
	repo.addContractor("Haddad & Sons")
	svc := NewService(repo, nil)

	result, err := svc.CreateContractor(context.Background(), ContractorInput{FullName: "Haddad & Sons"})
	require.NoError(t, err, "duplicate name is a warning, not a rejection")
	require.NotEmpty(t, result.Warning)
	require.NotZero(t, result.Contractor.ID)
}
