// Package api wires the HTTP handlers, middleware and routes.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/everest/authsvc/internal/api/handler"
	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/metrics"
	"github.com/everest/authsvc/internal/role"
)

// Service is everything the handlers need from the access service.
type Service interface {
	middleware.TokenValidator
	handler.SessionService
	handler.VerificationSender
	handler.UserService
	handler.CompanyService
	handler.RoleRequestService
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Service     Service
	DBPinger    handler.Pinger
	CachePinger handler.Pinger
	Version     string
	OpenAPISpec []byte

	// LoginRatePerMinute and LoginRateBurst limit the public /auth
	// endpoints per client IP. Zero disables the limiter.
	LoginRatePerMinute int
	LoginRateBurst     int
	// TrustProxy takes the client address from X-Forwarded-For, X-Real-IP
	// or True-Client-IP. Enable only behind a proxy that sets them.
	TrustProxy bool
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(metrics.Instrument)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.CachePinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.Service == nil {
		return r
	}

	authHandler := handler.NewAuthHandler(deps.Service)
	r.Route("/auth", func(r chi.Router) {
		if deps.LoginRatePerMinute > 0 {
			r.Use(middleware.NewRateLimiter(deps.LoginRatePerMinute, deps.LoginRateBurst).Middleware)
		}
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.Service))

		meHandler := handler.NewMeHandler(deps.Service)
		r.Get("/me", meHandler.Get)
		r.Post("/me/verify-email", meHandler.ResendVerification)

		userHandler := handler.NewUserHandler(deps.Service)
		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequirePermission(role.PermUsersWrite)).Post("/", userHandler.Provision)
			r.Get("/{id}", userHandler.Get)
			r.Get("/{id}/authorize", userHandler.Authorize)
			r.Put("/{id}/role", userHandler.ChangeRole)
			r.Put("/{id}/company", userHandler.AssignCompany)
			r.Delete("/{id}/company", userHandler.RemoveCompany)
			r.Post("/{id}/activate", userHandler.Activate)
			r.Post("/{id}/deactivate", userHandler.Deactivate)
			r.Get("/{id}/role-requests", userHandler.ListRoleRequests)
		})

		companyHandler := handler.NewCompanyHandler(deps.Service)
		r.Route("/companies", func(r chi.Router) {
			r.With(middleware.RequirePermission(role.PermCompaniesWrite)).Post("/", companyHandler.Create)
			r.Get("/", companyHandler.List)
			r.Get("/{id}", companyHandler.Get)
			r.Post("/{id}/deactivate", companyHandler.Deactivate)
		})

		rrHandler := handler.NewRoleRequestHandler(deps.Service)
		r.Route("/role-requests", func(r chi.Router) {
			r.Post("/", rrHandler.Create)
			r.With(middleware.RequirePermission(role.PermRoleRequestsReview)).Get("/", rrHandler.List)
			r.Get("/pending-count", rrHandler.PendingCount)
			r.Post("/{id}/review", rrHandler.Review)
			r.Post("/{id}/cancel", rrHandler.Cancel)
		})
	})

	return r
}
