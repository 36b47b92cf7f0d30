package middleware

import (
	"net/http"

	"github.com/everest/authsvc/internal/api/response"
	"github.com/everest/authsvc/internal/role"
)

// RequirePermission returns middleware that rejects principals lacking perm
// with 403. It must run after Auth.
func RequirePermission(perm role.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			principal := GetPrincipal(r.Context())
			if principal == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token is required", requestID)
				return
			}

			if !principal.Has(perm) {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
