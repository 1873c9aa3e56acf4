package payroll

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brickworks-erp/brickworks/internal/platform/httpx"
	"github.com/brickworks-erp/brickworks/internal/projects"
	"github.com/brickworks-erp/brickworks/internal/safe"
	"github.com/brickworks-erp/brickworks/internal/shared"
)

// ProjectDirectory lists the projects an employee can be assigned to.
type ProjectDirectory interface {
	ListProjects(ctx context.Context) ([]projects.Project, error)
}

// Handler wires HTTP endpoints for employees and salary payments.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory ProjectDirectory
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directory ProjectDirectory) *Handler {
	return &Handler{logger: logger, service: service, directory: directory, validator: validator.New()}
}

// MountRoutes registers payroll routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/positions", h.positions)
	r.Get("/projects", h.listProjects)
	r.Get("/due-payments", h.duePayments)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.terminate)
		r.Post("/pay-salary", h.paySalary)
		r.Get("/payment-history", h.paymentHistory)
		r.Get("/remaining-salary", h.remainingSalary)
	})
}

type createEmployeeRequest struct {
	Name              string     `json:"name" validate:"required"`
	Position          string     `json:"position"`
	Phone             string     `json:"phone"`
	MonthlySalary     FlexAmount `json:"monthly_salary"`
	BaseSalary        FlexAmount `json:"base_salary"`
	DailyBonus        FlexAmount `json:"daily_bonus"`
	OvertimePay       FlexAmount `json:"overtime_pay"`
	Deductions        FlexAmount `json:"deductions"`
	AssignedProjectID *int64     `json:"assigned_project_id"`
}

type updateEmployeeRequest struct {
	Name              *string     `json:"name"`
	Position          *string     `json:"position"`
	Phone             *string     `json:"phone"`
	MonthlySalary     *FlexAmount `json:"monthly_salary"`
	BaseSalary        *FlexAmount `json:"base_salary"`
	DailyBonus        *FlexAmount `json:"daily_bonus"`
	OvertimePay       *FlexAmount `json:"overtime_pay"`
	Deductions        *FlexAmount `json:"deductions"`
	Status            *string     `json:"status" validate:"omitempty,oneof=active inactive terminated"`
	AssignedProjectID *int64      `json:"assigned_project_id"`
}

type paySalaryRequest struct {
	Amount FlexAmount `json:"amount" validate:"required"`
	Note   string     `json:"note"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListEmployeesRequest{
		Status: EmployeeStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.ProjectID = id
		}
	}
	employees, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err, "list employees")
		return
	}
	httpx.JSON(w, http.StatusOK, employees)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.Create(r.Context(), CreateEmployeeInput{
		Name:              req.Name,
		Position:          req.Position,
		Phone:             req.Phone,
		MonthlySalary:     float64(req.MonthlySalary),
		BaseSalary:        float64(req.BaseSalary),
		DailyBonus:        float64(req.DailyBonus),
		OvertimePay:       float64(req.OvertimePay),
		Deductions:        float64(req.Deductions),
		AssignedProjectID: req.AssignedProjectID,
	})
	if err != nil {
		h.respondError(w, err, "create employee")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	employee, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get employee")
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := UpdateEmployeeInput{
		Name:              req.Name,
		Position:          req.Position,
		Phone:             req.Phone,
		MonthlySalary:     flexPtr(req.MonthlySalary),
		BaseSalary:        flexPtr(req.BaseSalary),
		DailyBonus:        flexPtr(req.DailyBonus),
		OvertimePay:       flexPtr(req.OvertimePay),
		Deductions:        flexPtr(req.Deductions),
		AssignedProjectID: req.AssignedProjectID,
	}
	if req.Status != nil {
		status := EmployeeStatus(*req.Status)
		input.Status = &status
	}
	updated, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err, "update employee")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Terminate(r.Context(), id); err != nil {
		h.respondError(w, err, "terminate employee")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) paySalary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req paySalaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	payment, err := h.service.PaySalary(r.Context(), PaySalaryInput{
		EmployeeID: id,
		Amount:     float64(req.Amount),
		Note:       req.Note,
		CreatedBy:  principal.UserID,
	})
	if err != nil {
		h.respondError(w, err, "pay salary")
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.PaymentHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "payment history")
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) remainingSalary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.RemainingSalary(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "remaining salary")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) duePayments(w http.ResponseWriter, r *http.Request) {
	due, err := h.service.DuePayments(r.Context())
	if err != nil {
		h.respondError(w, err, "due payments")
		return
	}
	httpx.JSON(w, http.StatusOK, due)
}

func (h *Handler) positions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions(r.Context())
	if err != nil {
		h.respondError(w, err, "list positions")
		return
	}
	httpx.JSON(w, http.StatusOK, positions)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.directory.ListProjects(r.Context())
	if err != nil {
		h.respondError(w, err, "list projects")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employee id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrEmployeeInactive), errors.Is(err, ErrExceedsRemaining):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Cannot Pay", err.Error())
	case errors.Is(err, safe.ErrInsufficientFunds):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Funds", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func flexPtr(f *FlexAmount) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}
