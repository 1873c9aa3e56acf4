package payroll

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EmployeeStatus enumerates employment states.
type EmployeeStatus string

const (
	StatusActive     EmployeeStatus = "active"
	StatusInactive   EmployeeStatus = "inactive"
	StatusTerminated EmployeeStatus = "terminated"
)

// Employee model. MonthlySalary is the flat pay when set; otherwise the
// legacy component form (base + daily bonus over 22 working days + overtime
// over 10 hours - deductions) applies.
type Employee struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	Position          *string        `json:"position,omitempty"`
	Phone             *string        `json:"phone,omitempty"`
	MonthlySalary     *float64       `json:"monthly_salary,omitempty"`
	BaseSalary        float64        `json:"base_salary"`
	DailyBonus        float64        `json:"daily_bonus"`
	OvertimePay       float64        `json:"overtime_pay"`
	Deductions        float64        `json:"deductions"`
	Status            EmployeeStatus `json:"status"`
	LastPaymentDate   *time.Time     `json:"last_payment_date,omitempty"`
	AssignedProjectID *int64         `json:"assigned_project_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Payment is one salary disbursement, linked to the safe transaction that
// funded it.
type Payment struct {
	ID                int64     `json:"id"`
	EmployeeID        int64     `json:"employee_id"`
	Amount            float64   `json:"amount"`
	Note              string    `json:"note,omitempty"`
	SafeTransactionID *int64    `json:"safe_transaction_id,omitempty"`
	PaidAt            time.Time `json:"paid_at"`
	CreatedBy         int64     `json:"-"`
}

// DuePayment summarises an employee still owed money this month.
type DuePayment struct {
	Employee  Employee `json:"employee"`
	Monthly   float64  `json:"monthly_salary"`
	Paid      float64  `json:"paid_this_month"`
	Remaining float64  `json:"remaining"`
}

// FlexAmount decodes a JSON number that clients sometimes send as a string.
// Unparseable values decode to zero rather than failing the request.
type FlexAmount float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexAmount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexAmount(parsed)
	return nil
}

var _ json.Unmarshaler = (*FlexAmount)(nil)

// --- Input DTOs ---

// CreateEmployeeInput for creating employees.
type CreateEmployeeInput struct {
	Name              string
	Position          string
	Phone             string
	MonthlySalary     float64
	BaseSalary        float64
	DailyBonus        float64
	OvertimePay       float64
	Deductions        float64
	AssignedProjectID *int64
}

// UpdateEmployeeInput applies partial updates.
type UpdateEmployeeInput struct {
	Name              *string
	Position          *string
	Phone             *string
	MonthlySalary     *float64
	BaseSalary        *float64
	DailyBonus        *float64
	OvertimePay       *float64
	Deductions        *float64
	Status            *EmployeeStatus
	AssignedProjectID *int64
}

// PaySalaryInput disburses amount to an employee.
type PaySalaryInput struct {
	EmployeeID int64
	Amount     float64
	Note       string
	CreatedBy  int64
}

// ListEmployeesRequest filters the employee listing.
type ListEmployeesRequest struct {
	Status    EmployeeStatus
	ProjectID int64
	Search    string
}
