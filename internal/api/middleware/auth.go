package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/everest/authsvc/internal/access"
	"github.com/everest/authsvc/internal/api/response"
)

const principalKey contextKey = "principal"

// TokenValidator resolves a bearer token to an authenticated principal.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*access.Principal, error)
}

// Auth is middleware that reads the Authorization bearer token and resolves
// it to a Principal. A missing token returns 401; validation errors are
// mapped by their kind.
func Auth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			token, ok := BearerToken(r)
			if !ok {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token is required", requestID)
				return
			}

			principal, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				response.FromError(w, err, requestID)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetPrincipal retrieves the authenticated Principal from the request context.
func GetPrincipal(ctx context.Context) *access.Principal {
	if p, ok := ctx.Value(principalKey).(*access.Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *access.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
