// Package access is the public surface of the authorization engine. It
// resolves actors, asks authz for a decision, drives the identity provider
// through the gateway and persists the result.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/cache"
	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/rolerequest"
	"github.com/everest/authsvc/internal/user"
)

// Gateway is the subset of the identity provider client the service uses.
type Gateway interface {
	CreateUser(ctx context.Context, profile idp.UserProfile, password string) (string, error)
	SetEnabled(ctx context.Context, externalID string, enabled bool) error
	AssignRealmRole(ctx context.Context, externalID string, r role.Role) error
	RemoveRealmRole(ctx context.Context, externalID string, r role.Role) error
	SendVerificationEmail(ctx context.Context, externalID string) error
	AuthenticateUser(ctx context.Context, username, password string) (*idp.EndUserToken, error)
	RefreshEndUserToken(ctx context.Context, refreshToken string) (*idp.EndUserToken, error)
	IntrospectOrUserInfo(ctx context.Context, accessToken string) (*idp.Claims, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Principal is an authenticated local user with its computed permissions.
type Principal struct {
	User        *user.User
	Permissions role.PermissionSet
}

// Has reports whether the principal carries p.
func (p *Principal) Has(perm role.Permission) bool {
	return p != nil && p.Permissions.Has(perm)
}

// Deps holds the collaborators of Service.
type Deps struct {
	Gateway   Gateway
	Users     user.Repository
	Companies company.Repository
	Requests  rolerequest.Repository
	Cache     cache.ClaimsCache
	CacheTTL  time.Duration
}

// Service implements the engine operations exposed to the HTTP layer.
type Service struct {
	gateway   Gateway
	users     user.Repository
	companies company.Repository
	requests  rolerequest.Repository
	workflow  *rolerequest.Workflow
	cache     cache.ClaimsCache
	cacheTTL  time.Duration
}

// NewService creates a Service. A nil cache disables claims caching.
func NewService(d Deps) *Service {
	s := &Service{
		gateway:   d.Gateway,
		users:     d.Users,
		companies: d.Companies,
		requests:  d.Requests,
		cache:     d.Cache,
		cacheTTL:  d.CacheTTL,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Minute
	}
	s.workflow = rolerequest.NewWorkflow(d.Requests, d.Users, s)
	return s
}

// SyncRole maps the new role in the identity provider and unmaps the
// previous one. Unmapping is best effort.
func (s *Service) SyncRole(ctx context.Context, u *user.User, previous role.Role) error {
	if err := s.gateway.AssignRealmRole(ctx, u.ExternalID, u.Role); err != nil {
		return err
	}
	if previous != u.Role && previous.Valid() {
		if err := s.gateway.RemoveRealmRole(ctx, u.ExternalID, previous); err != nil {
			slog.Warn("removing previous realm role failed", "userId", u.ID, "role", previous, "error", err)
		}
	}
	return nil
}

// Authorize decides op for actorID against targetID. Unknown actors or
// targets are denied without an error so callers cannot discover which ids exist.
func (s *Service) Authorize(ctx context.Context, actorID uuid.UUID, op authz.Operation, targetID uuid.UUID) (bool, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return authz.Authorize(actor, op, target), nil
}

// loadActor returns the active user behind actorID.
func (s *Service) loadActor(ctx context.Context, actorID uuid.UUID) (*user.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, err
	}
	if !actor.Active {
		return nil, apperr.ErrUnauthorized
	}
	return actor, nil
}

// authorizeTarget loads targetID and checks op. A missing target and a
// denied one both return apperr.ErrForbidden.
func (s *Service) authorizeTarget(ctx context.Context, actor *user.User, op authz.Operation, targetID uuid.UUID) (*user.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrForbidden
		}
		return nil, err
	}
	if !authz.Authorize(actor, op, target) {
		return nil, apperr.ErrForbidden
	}
	return target, nil
}

func requirePermission(actor *user.User, p role.Permission) error {
	if !authz.ComputePermissions(actor).Has(p) {
		return fmt.Errorf("%w: missing %s", apperr.ErrForbidden, p)
	}
	return nil
}
