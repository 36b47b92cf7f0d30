package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
	"github.com/everest/authsvc/internal/api/validation"
	"github.com/everest/authsvc/internal/company"
)

// CompanyService is the part of the access service behind /companies.
type CompanyService interface {
	CreateCompany(ctx context.Context, actorID uuid.UUID, name string) (*company.Company, error)
	GetCompany(ctx context.Context, actorID, companyID uuid.UUID) (*company.Company, error)
	ListCompanies(ctx context.Context, actorID uuid.UUID) ([]company.Company, error)
	DeactivateCompany(ctx context.Context, actorID, companyID uuid.UUID) (*company.Company, error)
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

// CompanyHandler handles company endpoints.
type CompanyHandler struct {
	svc CompanyService
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(svc CompanyService) *CompanyHandler {
	return &CompanyHandler{svc: svc}
}

// Create handles POST /companies.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateCreateCompanyRequest(req.Name)) {
		return
	}

	c, err := h.svc.CreateCompany(r.Context(), p.User.ID, req.Name)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toCompanyResponse(c), requestID)
}

// List handles GET /companies.
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}

	companies, err := h.svc.ListCompanies(r.Context(), p.User.ID)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	items := make([]companyResponse, 0, len(companies))
	for i := range companies {
		items = append(items, toCompanyResponse(&companies[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Get handles GET /companies/{id}.
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.svc.GetCompany(r.Context(), p.User.ID, id)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toCompanyResponse(c), requestID)
}

// Deactivate handles POST /companies/{id}/deactivate.
func (h *CompanyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.svc.DeactivateCompany(r.Context(), p.User.ID, id)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toCompanyResponse(c), requestID)
}
