package safe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brickworks-erp/brickworks/internal/observability"
	"github.com/brickworks-erp/brickworks/internal/platform/httpx"
	"github.com/brickworks-erp/brickworks/internal/shared"
)

// ScheduleReconcile schedules a pending-transaction sweep after the grace
// period. Wired to the jobs client; nil disables the eager sweep and leaves
// pending rows to the cron pass.
type ScheduleReconcile func(ctx context.Context) error

// Handler wires HTTP endpoints for the safe ledger.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	metrics     *observability.Metrics
	reconcile   ScheduleReconcile
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore, metrics *observability.Metrics, reconcile ScheduleReconcile) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		metrics:     metrics,
		reconcile:   reconcile,
		validator:   validator.New(),
	}
}

// MountRoutes registers safe routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/state", h.state)
	r.Post("/funding", h.addFunding)
	r.Post("/deduct/invoice", h.deductInvoice)
	r.Post("/deduct/salary", h.deductSalary)
	r.Post("/deduct/expense", h.deductExpense)
	r.Put("/transactions/{id}", h.editTransaction)
}

type fundingRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Description   string  `json:"description" validate:"required"`
	FundingSource string  `json:"funding_source"`
	FundingNotes  string  `json:"funding_notes"`
	BatchNumber   string  `json:"batch_number"`
}

type invoiceDeductionRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	ProjectID     int64   `json:"projectId" validate:"required,gt=0"`
	ProjectName   string  `json:"projectName" validate:"required"`
	InvoiceNumber string  `json:"invoiceNumber" validate:"required"`
	InvoiceID     *int64  `json:"invoiceId"`
}

type salaryDeductionRequest struct {
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	EmployeeName string  `json:"employeeName" validate:"required"`
	EmployeeID   *int64  `json:"employeeId"`
	Reason       string  `json:"reason"`
	Pending      bool    `json:"pending"`
}

type expenseDeductionRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"required"`
}

type editTransactionRequest struct {
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0"`
	Description *string  `json:"description"`
	Reason      string   `json:"reason" validate:"required"`
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context())
	if err != nil {
		h.logger.Error("load safe state", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, state)
}

func (h *Handler) addFunding(w http.ResponseWriter, r *http.Request) {
	var req fundingRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	created, err := h.service.AddFunding(r.Context(), FundingInput{
		Amount:        req.Amount,
		Description:   req.Description,
		FundingSource: req.FundingSource,
		FundingNotes:  req.FundingNotes,
		BatchNumber:   req.BatchNumber,
		CreatedBy:     principal.UserID,
	})
	if err != nil {
		h.respondError(w, err, "add funding")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deductInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceDeductionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.claimIdempotency(w, r, "safe.deduct.invoice") {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	created, err := h.service.DeductForInvoice(r.Context(), InvoiceDeductionInput{
		Amount:        req.Amount,
		ProjectID:     req.ProjectID,
		ProjectName:   req.ProjectName,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceID:     req.InvoiceID,
		CreatedBy:     principal.UserID,
	})
	h.observeDeduction("invoice", err)
	if err != nil {
		h.releaseIdempotency(r)
		h.respondError(w, err, "deduct invoice")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deductSalary(w http.ResponseWriter, r *http.Request) {
	var req salaryDeductionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.claimIdempotency(w, r, "safe.deduct.salary") {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	created, err := h.service.DeductForSalary(r.Context(), SalaryDeductionInput{
		Amount:       req.Amount,
		EmployeeID:   req.EmployeeID,
		EmployeeName: req.EmployeeName,
		Reason:       req.Reason,
		Pending:      req.Pending,
		CreatedBy:    principal.UserID,
	})
	h.observeDeduction("salary", err)
	if err != nil {
		h.releaseIdempotency(r)
		h.respondError(w, err, "deduct salary")
		return
	}
	if req.Pending && h.reconcile != nil {
		if err := h.reconcile(r.Context()); err != nil {
			h.logger.Warn("schedule reconcile", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deductExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseDeductionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.claimIdempotency(w, r, "safe.deduct.expense") {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	created, err := h.service.DeductForExpense(r.Context(), ExpenseDeductionInput{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		CreatedBy:   principal.UserID,
	})
	h.observeDeduction("expense", err)
	if err != nil {
		h.releaseIdempotency(r)
		h.respondError(w, err, "deduct expense")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	var req editTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	updated, err := h.service.EditTransaction(r.Context(), EditTransactionInput{
		ID:          id,
		Amount:      req.Amount,
		Description: req.Description,
		Reason:      req.Reason,
		EditedBy:    principal.UserID,
	})
	if err != nil {
		h.respondError(w, err, "edit transaction")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// claimIdempotency reserves the Idempotency-Key header when present. A
// replayed key answers 409 without running the deduction again.
func (h *Handler) claimIdempotency(w http.ResponseWriter, r *http.Request, module string) bool {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, module); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
			return false
		}
		h.logger.Error("idempotency claim", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return false
	}
	return true
}

func (h *Handler) releaseIdempotency(r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return
	}
	if err := h.idempotency.Delete(r.Context(), key); err != nil {
		h.logger.Warn("idempotency release", slog.Any("error", err))
	}
}

func (h *Handler) observeDeduction(deductionType string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		outcome = "insufficient_funds"
	case err != nil:
		outcome = "error"
	}
	h.metrics.ObserveDeduction(deductionType, outcome)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Funds", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrEditReasonRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
