package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
)

// VerificationSender re-sends the account verification email.
type VerificationSender interface {
	ResendVerificationEmail(ctx context.Context, actorID uuid.UUID) error
}

type meResponse struct {
	User        userResponse `json:"user"`
	Permissions []string     `json:"permissions"`
}

// MeHandler serves the authenticated caller's own view.
type MeHandler struct {
	svc VerificationSender
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(svc VerificationSender) *MeHandler {
	return &MeHandler{svc: svc}
}

// Get handles GET /me.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	response.Success(w, http.StatusOK, meResponse{
		User:        toUserResponse(p.User),
		Permissions: p.Permissions.Sorted(),
	}, middleware.GetRequestID(r.Context()))
}

// ResendVerification handles POST /me/verify-email.
func (h *MeHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.ResendVerificationEmail(r.Context(), p.User.ID); err != nil {
		response.FromError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	response.NoContent(w)
}
