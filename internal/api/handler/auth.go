package handler

import (
	"context"
	"net/http"

	"github.com/everest/authsvc/internal/access"
	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
	"github.com/everest/authsvc/internal/api/validation"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/user"
)

// SessionService is the part of the access service behind /auth.
type SessionService interface {
	Authenticate(ctx context.Context, username, password string) (*idp.EndUserToken, error)
	Refresh(ctx context.Context, refreshToken string) (*idp.EndUserToken, error)
	Register(ctx context.Context, in access.RegisterInput) (*user.User, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AuthHandler handles the public session endpoints.
type AuthHandler struct {
	svc SessionService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc SessionService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateLoginRequest(validation.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	})) {
		return
	}

	tok, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, tok, requestID)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		invalid(w, r, []validation.FieldError{{Field: "refreshToken", Message: "refreshToken is required"}})
		return
	}

	tok, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, tok, requestID)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateRegisterRequest(validation.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})) {
		return
	}

	u, err := h.svc.Register(r.Context(), access.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// Logout handles POST /auth/logout. The bearer token, when present, is
// dropped from the claims cache.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accessToken, _ := middleware.BearerToken(r)

	if err := h.svc.Logout(r.Context(), accessToken, req.RefreshToken); err != nil {
		response.FromError(w, err, requestID)
		return
	}

	response.NoContent(w)
}
