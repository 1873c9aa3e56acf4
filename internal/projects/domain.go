package projects

import "time"

// ProjectStatus enumerates project lifecycle states.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// Project is a construction project. Assignments and invoices hang off it.
type Project struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Location  string        `json:"location,omitempty"`
	Budget    float64       `json:"budget"`
	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Contractor is reference data. Duplicate full names are legal; the API
// answers a warning so the console can surface it.
type Contractor struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Category    string    `json:"category,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryAssignment maps a project budget line to a contractor with an
// estimated spend ceiling. No two assignments of a project may share the
// same (main_category, subcategory, contractor_id) tuple.
type CategoryAssignment struct {
	ID                 int64     `json:"id"`
	ProjectID          int64     `json:"project_id"`
	MainCategory       string    `json:"main_category"`
	Subcategory        string    `json:"subcategory"`
	ContractorID       int64     `json:"contractorId"`
	ContractorName     string    `json:"contractor_name"`
	EstimatedAmount    float64   `json:"estimated_amount"`
	ActualAmount       float64   `json:"actual_amount"`
	HasApprovedInvoice bool      `json:"has_approved_invoice"`
	BudgetExhausted    bool      `json:"budget_exhausted"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AssignmentDraft is one unsaved assignment row from the console.
type AssignmentDraft struct {
	MainCategory    string  `json:"main_category"`
	Subcategory     string  `json:"subcategory"`
	ContractorID    int64   `json:"contractorId"`
	EstimatedAmount float64 `json:"estimated_amount"`
}

func (d AssignmentDraft) tuple() assignmentTuple {
	return assignmentTuple{d.MainCategory, d.Subcategory, d.ContractorID}
}

func (a CategoryAssignment) tuple() assignmentTuple {
	return assignmentTuple{a.MainCategory, a.Subcategory, a.ContractorID}
}

type assignmentTuple struct {
	main       string
	sub        string
	contractor int64
}

// CreateProjectInput for creating projects.
type CreateProjectInput struct {
	Name     string
	Location string
	Budget   float64
}

// ContractorInput creates or updates a contractor.
type ContractorInput struct {
	FullName    string
	PhoneNumber string
	Category    string
	Notes       string
}
