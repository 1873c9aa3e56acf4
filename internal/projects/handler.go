package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brickworks-erp/brickworks/internal/platform/httpx"
	"github.com/brickworks-erp/brickworks/internal/shared"
)

// Handler wires HTTP endpoints for projects, assignments and contractors.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountProjectRoutes registers project and assignment routes.
func (h *Handler) MountProjectRoutes(r chi.Router) {
	r.Get("/", h.listProjects)
	r.Post("/", h.createProject)
	r.Get("/categories", h.categories)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getProject)
		r.Get("/assignments", h.listAssignments)
		r.Post("/assignments", h.addAssignments)
		r.Put("/assignments/{assignmentID}", h.editAssignment)
		r.Delete("/assignments/{assignmentID}", h.deleteAssignment)
	})
}

// MountContractorRoutes registers contractor routes.
func (h *Handler) MountContractorRoutes(r chi.Router) {
	r.Get("/", h.listContractors)
	r.Post("/", h.createContractor)
	r.Put("/{id}", h.updateContractor)
	r.Delete("/{id}", h.deleteContractor)
}

type createProjectRequest struct {
	Name     string  `json:"name" validate:"required"`
	Location string  `json:"location"`
	Budget   float64 `json:"budget" validate:"gte=0"`
}

type assignmentDraftRequest struct {
	MainCategory    string  `json:"main_category" validate:"required"`
	Subcategory     string  `json:"subcategory" validate:"required"`
	ContractorID    int64   `json:"contractorId" validate:"required,gt=0"`
	EstimatedAmount float64 `json:"estimated_amount" validate:"required,gt=0"`
}

type addAssignmentsRequest struct {
	Assignments []assignmentDraftRequest `json:"assignments" validate:"required,min=1,dive"`
}

type contractorRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number"`
	Category    string `json:"category"`
	Notes       string `json:"notes"`
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.respondError(w, err, "list projects")
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	project, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get project")
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateProject(r.Context(), CreateProjectInput{
		Name:     req.Name,
		Location: req.Location,
		Budget:   req.Budget,
	})
	if err != nil {
		h.respondError(w, err, "create project")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) categories(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, Catalog)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	assignments, err := h.service.Assignments(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "list assignments")
		return
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

func (h *Handler) addAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req addAssignmentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	drafts := make([]AssignmentDraft, 0, len(req.Assignments))
	for _, d := range req.Assignments {
		drafts = append(drafts, AssignmentDraft{
			MainCategory:    d.MainCategory,
			Subcategory:     d.Subcategory,
			ContractorID:    d.ContractorID,
			EstimatedAmount: d.EstimatedAmount,
		})
	}
	created, err := h.service.AddAssignments(r.Context(), id, drafts)
	if err != nil {
		h.respondError(w, err, "add assignments")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) editAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	assignmentID, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	var req assignmentDraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.EditAssignment(r.Context(), projectID, assignmentID, AssignmentDraft{
		MainCategory:    req.MainCategory,
		Subcategory:     req.Subcategory,
		ContractorID:    req.ContractorID,
		EstimatedAmount: req.EstimatedAmount,
	})
	if err != nil {
		h.respondError(w, err, "edit assignment")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	assignmentID, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteAssignment(r.Context(), projectID, assignmentID, principal.UserID); err != nil {
		h.respondError(w, err, "delete assignment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listContractors(w http.ResponseWriter, r *http.Request) {
	contractors, err := h.service.ListContractors(r.Context())
	if err != nil {
		h.respondError(w, err, "list contractors")
		return
	}
	httpx.JSON(w, http.StatusOK, contractors)
}

func (h *Handler) createContractor(w http.ResponseWriter, r *http.Request) {
	var req contractorRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CreateContractor(r.Context(), ContractorInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Category:    req.Category,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, err, "create contractor")
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) updateContractor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req contractorRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateContractor(r.Context(), id, ContractorInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Category:    req.Category,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, err, "update contractor")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteContractor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteContractor(r.Context(), id); err != nil {
		h.respondError(w, err, "delete contractor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateAssignment):
		httpx.Problem(w, http.StatusConflict, "Duplicate Assignment", err.Error())
	case errors.Is(err, ErrAssignmentProtected):
		httpx.Problem(w, http.StatusConflict, "Assignment Protected", err.Error())
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrUnknownContractor),
		errors.Is(err, ErrUnknownCategory), errors.Is(err, ErrUnknownSubcategory),
		errors.Is(err, ErrInvalidEstimate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
