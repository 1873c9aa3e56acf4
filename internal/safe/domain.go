package safe

import "time"

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TypeFunding        TransactionType = "funding"
	TypeInvoicePayment TransactionType = "invoice_payment"
	TypeSalaryPayment  TransactionType = "salary_payment"
	TypeGeneralExpense TransactionType = "general_expense"
)

// TransactionStatus tracks the reconciliation lifecycle. CONFIRMED entries
// are settled; PENDING entries were accepted on a degraded path and must be
// matched against payroll history before they count as settled; VOID entries
// were reversed and no longer affect totals.
type TransactionStatus string

const (
	StatusConfirmed TransactionStatus = "CONFIRMED"
	StatusPending   TransactionStatus = "PENDING"
	StatusVoid      TransactionStatus = "VOID"
)

// Transaction is one ledger entry. Amount is signed: positive for funding,
// negative for deductions. NewBalance = PreviousBalance + Amount holds at
// creation time and is never re-validated afterwards; corrections go through
// the edit-audit path.
type Transaction struct {
	ID              int64             `json:"id"`
	Type            TransactionType   `json:"type"`
	Amount          float64           `json:"amount"`
	Description     string            `json:"description"`
	Date            time.Time         `json:"date"`
	ProjectID       *int64            `json:"projectId,omitempty"`
	ProjectName     *string           `json:"projectName,omitempty"`
	InvoiceNumber   *string           `json:"invoiceNumber,omitempty"`
	EmployeeID      *int64            `json:"employeeId,omitempty"`
	EmployeeName    *string           `json:"employeeName,omitempty"`
	ExpenseCategory *string           `json:"expenseCategory,omitempty"`
	PreviousBalance float64           `json:"previousBalance"`
	NewBalance      float64           `json:"newBalance"`
	Status          TransactionStatus `json:"status"`
	BatchNumber     string            `json:"batch_number,omitempty"`
	FundingSource   *string           `json:"funding_source,omitempty"`
	FundingNotes    *string           `json:"funding_notes,omitempty"`
	IsEdited        bool              `json:"is_edited"`
	EditReason      *string           `json:"edit_reason,omitempty"`
	EditedBy        *int64            `json:"edited_by,omitempty"`
	EditedAt        *time.Time        `json:"edited_at,omitempty"`
	CreatedBy       int64             `json:"-"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// State is the full ledger snapshot served to clients. CurrentBalance equals
// TotalFunded - TotalSpent by construction; it is recomputed wholesale from
// the transaction table, never carried forward incrementally.
type State struct {
	CurrentBalance float64       `json:"currentBalance"`
	TotalFunded    float64       `json:"totalFunded"`
	TotalSpent     float64       `json:"totalSpent"`
	Transactions   []Transaction `json:"transactions"`
}

// Balance is the lockable balance row.
type Balance struct {
	Current     float64
	TotalFunded float64
	TotalSpent  float64
}

// --- Input DTOs ---

// FundingInput describes a deposit into the safe.
type FundingInput struct {
	Amount        float64
	Description   string
	FundingSource string
	FundingNotes  string
	BatchNumber   string
	CreatedBy     int64
}

// InvoiceDeductionInput pays a project invoice out of the safe.
type InvoiceDeductionInput struct {
	Amount        float64
	ProjectID     int64
	ProjectName   string
	InvoiceNumber string
	InvoiceID     *int64
	CreatedBy     int64
}

// SalaryDeductionInput pays an employee out of the safe. Pending marks the
// transaction as accepted on a degraded path, to be reconciled against the
// payroll payment history later.
type SalaryDeductionInput struct {
	Amount       float64
	EmployeeID   *int64
	EmployeeName string
	Reason       string
	Pending      bool
	CreatedBy    int64
}

// ExpenseDeductionInput records a general expense against the safe.
type ExpenseDeductionInput struct {
	Amount      float64
	Description string
	Category    string
	CreatedBy   int64
}

// EditTransactionInput corrects an existing transaction. Reason is required;
// the edit is recorded on the row and in the audit log.
type EditTransactionInput struct {
	ID          int64
	Amount      *float64
	Description *string
	Reason      string
	EditedBy    int64
}
