package invoices

import "time"

// InvoiceStatus enumerates the invoice lifecycle.
type InvoiceStatus string

const (
	StatusDraft    InvoiceStatus = "draft"
	StatusApproved InvoiceStatus = "approved"
	StatusPaid     InvoiceStatus = "paid"
)

// CategoryInvoice is an invoice a contractor raised against a project's
// category assignment. Approval protects the assignment from edits; payment
// deducts from the safe and accumulates on the assignment's actual spend.
type CategoryInvoice struct {
	ID                int64         `json:"id"`
	ProjectID         int64         `json:"project_id"`
	AssignmentID      int64         `json:"assignment_id"`
	InvoiceNumber     string        `json:"invoiceNumber"`
	Amount            float64       `json:"amount"`
	Description       string        `json:"description,omitempty"`
	Status            InvoiceStatus `json:"status"`
	SafeTransactionID *int64        `json:"safe_transaction_id,omitempty"`
	CreatedBy         int64         `json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	ApprovedAt        *time.Time    `json:"approved_at,omitempty"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
}

// CreateInvoiceInput raises a new invoice against an assignment.
type CreateInvoiceInput struct {
	AssignmentID  int64
	InvoiceNumber string
	Amount        float64
	Description   string
	CreatedBy     int64
}

// ListInvoicesRequest filters the invoice listing.
type ListInvoicesRequest struct {
	ProjectID int64
	Status    InvoiceStatus
}

// PayResult reports a paid invoice together with the updated budget position
// of its assignment.
type PayResult struct {
	Invoice         CategoryInvoice `json:"invoice"`
	BudgetExhausted bool            `json:"budget_exhausted"`
	ActualAmount    float64         `json:"actual_amount"`
	EstimatedAmount float64         `json:"estimated_amount"`
}
