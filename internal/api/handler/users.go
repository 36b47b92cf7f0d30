package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/access"
	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
	"github.com/everest/authsvc/internal/api/validation"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/rolerequest"
	"github.com/everest/authsvc/internal/user"
)

// UserService is the part of the access service behind /users.
type UserService interface {
	GetUser(ctx context.Context, actorID, targetID uuid.UUID) (*user.User, error)
	Authorize(ctx context.Context, actorID uuid.UUID, op authz.Operation, targetID uuid.UUID) (bool, error)
	ProvisionUser(ctx context.Context, actorID uuid.UUID, in access.ProvisionInput) (*user.User, error)
	ChangeUserRole(ctx context.Context, actorID, targetID uuid.UUID, newRole string) (*user.User, error)
	AssignCompany(ctx context.Context, actorID, targetID, companyID uuid.UUID) (*user.User, error)
	RemoveFromCompany(ctx context.Context, actorID, targetID uuid.UUID) (*user.User, error)
	SetUserActive(ctx context.Context, actorID, targetID uuid.UUID, active bool) (*user.User, error)
	ListUserRoleRequests(ctx context.Context, actorID, targetID uuid.UUID) ([]rolerequest.RoleRequest, error)
}

type provisionUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	CompanyID string `json:"companyId"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type assignCompanyRequest struct {
	CompanyID string `json:"companyId"`
}

type authorizeResponse struct {
	Operation string `json:"operation"`
	Allowed   bool   `json:"allowed"`
}

// UserHandler handles user management endpoints.
type UserHandler struct {
	svc UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(actorID, targetID uuid.UUID) (*user.User, error) {
		return h.svc.GetUser(r.Context(), actorID, targetID)
	})
}

// Authorize handles GET /users/{id}/authorize?operation=...
func (h *UserHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	op, err := authz.ParseOperation(r.URL.Query().Get("operation"))
	if err != nil {
		invalid(w, r, []validation.FieldError{{Field: "operation", Message: "operation must be a known operation"}})
		return
	}

	allowed, err := h.svc.Authorize(r.Context(), p.User.ID, op, targetID)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, authorizeResponse{Operation: string(op), Allowed: allowed}, requestID)
}

// Provision handles POST /users.
func (h *UserHandler) Provision(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req provisionUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateProvisionUserRequest(validation.ProvisionUserRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		CompanyID: req.CompanyID,
	})) {
		return
	}

	in := access.ProvisionInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}
	if req.CompanyID != "" {
		id := uuid.MustParse(req.CompanyID)
		in.CompanyID = &id
	}

	u, err := h.svc.ProvisionUser(r.Context(), p.User.ID, in)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// ChangeRole handles PUT /users/{id}/role.
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateChangeRoleRequest(req.Role)) {
		return
	}

	h.withTarget(w, r, func(actorID, targetID uuid.UUID) (*user.User, error) {
		return h.svc.ChangeUserRole(r.Context(), actorID, targetID, req.Role)
	})
}

// AssignCompany handles PUT /users/{id}/company.
func (h *UserHandler) AssignCompany(w http.ResponseWriter, r *http.Request) {
	var req assignCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateAssignCompanyRequest(req.CompanyID)) {
		return
	}
	companyID := uuid.MustParse(req.CompanyID)

	h.withTarget(w, r, func(actorID, targetID uuid.UUID) (*user.User, error) {
		return h.svc.AssignCompany(r.Context(), actorID, targetID, companyID)
	})
}

// RemoveCompany handles DELETE /users/{id}/company.
func (h *UserHandler) RemoveCompany(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(actorID, targetID uuid.UUID) (*user.User, error) {
		return h.svc.RemoveFromCompany(r.Context(), actorID, targetID)
	})
}

// Activate handles POST /users/{id}/activate.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(actorID, targetID uuid.UUID) (*user.User, error) {
		return h.svc.SetUserActive(r.Context(), actorID, targetID, true)
	})
}

// Deactivate handles POST /users/{id}/deactivate.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(actorID, targetID uuid.UUID) (*user.User, error) {
		return h.svc.SetUserActive(r.Context(), actorID, targetID, false)
	})
}

// ListRoleRequests handles GET /users/{id}/role-requests.
func (h *UserHandler) ListRoleRequests(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rrs, err := h.svc.ListUserRoleRequests(r.Context(), p.User.ID, targetID)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	items := toRoleRequestList(rrs)
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// withTarget resolves the principal and {id}, runs fn and writes the user.
func (h *UserHandler) withTarget(w http.ResponseWriter, r *http.Request, fn func(actorID, targetID uuid.UUID) (*user.User, error)) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	u, err := fn(p.User.ID, targetID)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}
