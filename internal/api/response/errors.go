package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/everest/authsvc/internal/apperr"
)

type errorMapping struct {
	status int
	code   string
}

var mappings = map[error]errorMapping{
	apperr.ErrAuthenticationFailed:        {http.StatusUnauthorized, "AUTHENTICATION_FAILED"},
	apperr.ErrInvalidToken:                {http.StatusUnauthorized, "INVALID_TOKEN"},
	apperr.ErrUnauthorized:                {http.StatusUnauthorized, "UNAUTHORIZED"},
	apperr.ErrForbidden:                   {http.StatusForbidden, "FORBIDDEN"},
	apperr.ErrUserNotFound:                {http.StatusNotFound, "USER_NOT_FOUND"},
	apperr.ErrNotFound:                    {http.StatusNotFound, "NOT_FOUND"},
	apperr.ErrActiveRequestExists:         {http.StatusConflict, "ACTIVE_REQUEST_EXISTS"},
	apperr.ErrConflict:                    {http.StatusConflict, "CONFLICT"},
	apperr.ErrInvalidOperation:            {http.StatusUnprocessableEntity, "INVALID_OPERATION"},
	apperr.ErrBusinessRule:                {http.StatusConflict, "BUSINESS_RULE_VIOLATION"},
	apperr.ErrIdentityProviderUnavailable: {http.StatusServiceUnavailable, "IDP_UNAVAILABLE"},
	apperr.ErrValidation:                  {http.StatusBadRequest, "VALIDATION_ERROR"},
}

// FromError writes err using the status and code of its apperr kind.
// Authentication and permission failures get fixed messages so they never
// reveal whether a resource exists. Unclassified errors are logged and
// reported as INTERNAL_ERROR without their message.
func FromError(w http.ResponseWriter, err error, requestID string) {
	kind := apperr.Kind(err)
	m, ok := mappings[kind]
	if !ok {
		slog.Error("unhandled error", "error", err, "requestId", requestID)
		Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
		return
	}

	message := err.Error()
	switch {
	case errors.Is(err, apperr.ErrAuthenticationFailed):
		message = "Invalid username or password"
	case errors.Is(err, apperr.ErrInvalidToken), errors.Is(err, apperr.ErrUnauthorized):
		message = "Authentication required"
	case errors.Is(err, apperr.ErrForbidden):
		message = "Not permitted"
	case errors.Is(err, apperr.ErrIdentityProviderUnavailable):
		slog.Warn("identity provider unavailable", "error", err, "requestId", requestID)
		message = "Identity provider unavailable, retry later"
		w.Header().Set("Retry-After", "5")
	}
	Err(w, m.status, m.code, message, requestID)
}
