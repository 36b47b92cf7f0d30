// Package handler holds the HTTP handlers. Handlers decode and validate the
// request, call the access service with the authenticated principal and
// write the envelope; authorization decisions live in the service.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/access"
	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
	"github.com/everest/authsvc/internal/api/validation"
	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/rolerequest"
	"github.com/everest/authsvc/internal/user"
)

const (
	maxBodyBytes    = 1 << 20
	timestampLayout = "2006-01-02T15:04:05Z"
)

// decodeJSON reads the body into dst and writes INVALID_JSON on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// invalid writes VALIDATION_ERROR when errs is non-empty.
func invalid(w http.ResponseWriter, r *http.Request, errs []validation.FieldError) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, middleware.GetRequestID(r.Context()))
	return true
}

// principal returns the authenticated caller or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (*access.Principal, bool) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil || p.User == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token is required", middleware.GetRequestID(r.Context()))
		return nil, false
	}
	return p, true
}

// pathID parses the {name} URL parameter as a UUID or writes INVALID_ID.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", name+" must be a valid UUID", middleware.GetRequestID(r.Context()))
		return uuid.Nil, false
	}
	return id, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

type userResponse struct {
	ID            string  `json:"id"`
	ExternalID    string  `json:"externalId"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	RealmRole     string  `json:"realmRole"`
	CompanyID     *string `json:"companyId"`
	EmailVerified bool    `json:"emailVerified"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toUserResponse(u *user.User) userResponse {
	var companyID *string
	if u.CompanyID != nil {
		s := u.CompanyID.String()
		companyID = &s
	}
	return userResponse{
		ID:            u.ID.String(),
		ExternalID:    u.ExternalID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          string(u.Role),
		RealmRole:     u.Role.DisplayName(),
		CompanyID:     companyID,
		EmailVerified: u.EmailVerified,
		Active:        u.Active,
		CreatedAt:     formatTime(u.CreatedAt),
		UpdatedAt:     formatTime(u.UpdatedAt),
	}
}

type companyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toCompanyResponse(c *company.Company) companyResponse {
	return companyResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Active:    c.Active,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

type roleRequestResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	RequestedRole string  `json:"requestedRole"`
	Reason        string  `json:"reason"`
	Status        string  `json:"status"`
	ReviewerID    *string `json:"reviewerId"`
	ReviewNotes   *string `json:"reviewNotes"`
	CreatedAt     string  `json:"createdAt"`
	ReviewedAt    *string `json:"reviewedAt"`
}

func toRoleRequestResponse(rr *rolerequest.RoleRequest) roleRequestResponse {
	var reviewer *string
	if rr.ReviewerID != nil {
		s := rr.ReviewerID.String()
		reviewer = &s
	}
	return roleRequestResponse{
		ID:            rr.ID.String(),
		UserID:        rr.UserID.String(),
		RequestedRole: string(rr.RequestedRole),
		Reason:        rr.Reason,
		Status:        string(rr.Status),
		ReviewerID:    reviewer,
		ReviewNotes:   rr.ReviewNotes,
		CreatedAt:     formatTime(rr.CreatedAt),
		ReviewedAt:    formatTimePtr(rr.ReviewedAt),
	}
}

func toRoleRequestList(rrs []rolerequest.RoleRequest) []roleRequestResponse {
	items := make([]roleRequestResponse, 0, len(rrs))
	for i := range rrs {
		items = append(items, toRoleRequestResponse(&rrs[i]))
	}
	return items
}
