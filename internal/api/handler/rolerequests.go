package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
	"github.com/everest/authsvc/internal/api/validation"
	"github.com/everest/authsvc/internal/rolerequest"
)

// RoleRequestService is the part of the access service behind /role-requests.
type RoleRequestService interface {
	RequestRoleChange(ctx context.Context, actorID uuid.UUID, requestedRole, reason string) (*rolerequest.RoleRequest, error)
	ReviewRoleChange(ctx context.Context, reviewerID, requestID uuid.UUID, status, notes string) (*rolerequest.RoleRequest, error)
	CancelRoleRequest(ctx context.Context, actorID, requestID uuid.UUID) (*rolerequest.RoleRequest, error)
	ListRoleRequests(ctx context.Context, reviewerID uuid.UUID, status string) ([]rolerequest.RoleRequest, error)
	PendingRoleRequestCount(ctx context.Context, actorID uuid.UUID) (int, error)
}

type createRoleRequestRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

type reviewRoleRequestRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type pendingCountResponse struct {
	Pending int `json:"pending"`
}

// RoleRequestHandler handles the role request workflow endpoints.
type RoleRequestHandler struct {
	svc RoleRequestService
}

// NewRoleRequestHandler creates a new RoleRequestHandler.
func NewRoleRequestHandler(svc RoleRequestService) *RoleRequestHandler {
	return &RoleRequestHandler{svc: svc}
}

// Create handles POST /role-requests.
func (h *RoleRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createRoleRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateCreateRoleRequest(validation.CreateRoleRequest{
		Role:   req.Role,
		Reason: req.Reason,
	})) {
		return
	}

	rr, err := h.svc.RequestRoleChange(r.Context(), p.User.ID, req.Role, req.Reason)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toRoleRequestResponse(rr), requestID)
}

// List handles GET /role-requests?status=...
func (h *RoleRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}

	rrs, err := h.svc.ListRoleRequests(r.Context(), p.User.ID, r.URL.Query().Get("status"))
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	items := toRoleRequestList(rrs)
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// PendingCount handles GET /role-requests/pending-count.
func (h *RoleRequestHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}

	n, err := h.svc.PendingRoleRequestCount(r.Context(), p.User.ID)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, pendingCountResponse{Pending: n}, requestID)
}

// Review handles POST /role-requests/{id}/review.
func (h *RoleRequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRoleRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateReviewRoleRequest(validation.ReviewRoleRequest{
		Status: req.Status,
		Notes:  req.Notes,
	})) {
		return
	}

	rr, err := h.svc.ReviewRoleChange(r.Context(), p.User.ID, id, req.Status, req.Notes)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toRoleRequestResponse(rr), requestID)
}

// Cancel handles POST /role-requests/{id}/cancel.
func (h *RoleRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rr, err := h.svc.CancelRoleRequest(r.Context(), p.User.ID, id)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toRoleRequestResponse(rr), requestID)
}
