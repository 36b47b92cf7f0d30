package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/user"
)

// ErrCompanyInactive is returned when assigning users to a deactivated company.
var ErrCompanyInactive = fmt.Errorf("%w: company is inactive", apperr.ErrBusinessRule)

// ProvisionInput is the payload for creating a user on someone's behalf.
type ProvisionInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CompanyID *uuid.UUID
}

// GetUser returns targetID if actorID may view it.
func (s *Service) GetUser(ctx context.Context, actorID, targetID uuid.UUID) (*user.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.authorizeTarget(ctx, actor, authz.OpViewUser, targetID)
}

// ProvisionUser creates a user with an explicit role and company. Admins may
// provision anything; Partners and Operators only company-scoped users in
// their own company at or below their own role.
func (s *Service) ProvisionUser(ctx context.Context, actorID uuid.UUID, in ProvisionInput) (*user.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(actor, role.PermUsersWrite); err != nil {
		return nil, err
	}

	r, err := role.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if actor.Role != role.Admin {
		if r == role.Admin || r.Outranks(actor.Role) || !r.IsCompanyScoped() {
			return nil, apperr.ErrForbidden
		}
	}

	if in.CompanyID != nil {
		if !authz.CanManageCompany(actor, *in.CompanyID) {
			return nil, apperr.ErrForbidden
		}
		if err := s.requireActiveCompany(ctx, *in.CompanyID); err != nil {
			return nil, err
		}
	}

	if _, err := user.New("pending", in.Username, in.Email, r, in.CompanyID); err != nil {
		return nil, err
	}

	externalID, err := s.gateway.CreateUser(ctx, idp.UserProfile{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}, in.Password)
	if err != nil {
		return nil, err
	}

	u, err := user.New(externalID, in.Username, in.Email, r, in.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := s.finishProvisioning(ctx, u); err != nil {
		return nil, err
	}

	slog.Info("user provisioned", "userId", u.ID, "role", r, "actorId", actor.ID)
	return u, nil
}

// ChangeUserRole moves targetID to newRole after checking that actorID may
// grant it. The identity provider is updated before the local row.
func (s *Service) ChangeUserRole(ctx context.Context, actorID, targetID uuid.UUID, newRole string) (*user.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	r, err := role.ParseRole(newRole)
	if err != nil {
		return nil, err
	}
	target, err := s.authorizeTarget(ctx, actor, authz.OpChangeRole, targetID)
	if err != nil {
		return nil, err
	}
	if !authz.CanChangeRole(actor, target, r) {
		return nil, apperr.ErrForbidden
	}

	changed := target.Clone()
	if err := changed.ChangeRole(r); err != nil {
		return nil, err
	}
	if err := s.SyncRole(ctx, changed, target.Role); err != nil {
		return nil, err
	}
	updated, err := s.users.Update(ctx, target.ID, func(u *user.User) error { return u.ChangeRole(r) })
	if err != nil {
		if rerr := s.SyncRole(ctx, target, changed.Role); rerr != nil {
			slog.Error("reverting identity provider role failed", "userId", target.ID, "error", rerr)
		}
		return nil, err
	}

	slog.Info("user role changed", "userId", target.ID, "from", target.Role, "to", r, "actorId", actor.ID)
	return updated, nil
}

// AssignCompany binds targetID to companyID. The actor must manage both.
func (s *Service) AssignCompany(ctx context.Context, actorID, targetID, companyID uuid.UUID) (*user.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.authorizeTarget(ctx, actor, authz.OpAssignCompany, targetID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageCompany(actor, companyID) {
		return nil, apperr.ErrForbidden
	}
	if err := s.requireActiveCompany(ctx, companyID); err != nil {
		return nil, err
	}

	updated, err := s.users.Update(ctx, target.ID, func(u *user.User) error { return u.AssignToCompany(companyID) })
	if err != nil {
		return nil, err
	}

	slog.Info("user assigned to company", "userId", target.ID, "companyId", companyID, "actorId", actor.ID)
	return updated, nil
}

// RemoveFromCompany detaches targetID from its company without changing its role.
func (s *Service) RemoveFromCompany(ctx context.Context, actorID, targetID uuid.UUID) (*user.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.authorizeTarget(ctx, actor, authz.OpRemoveFromCompany, targetID)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.Update(ctx, target.ID, func(u *user.User) error {
		u.RemoveFromCompany()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user removed from company", "userId", target.ID, "actorId", actor.ID)
	return updated, nil
}

// SetUserActive activates or deactivates targetID, identity provider first.
func (s *Service) SetUserActive(ctx context.Context, actorID, targetID uuid.UUID, active bool) (*user.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	op := authz.OpDeactivateUser
	if active {
		op = authz.OpActivateUser
	}
	target, err := s.authorizeTarget(ctx, actor, op, targetID)
	if err != nil {
		return nil, err
	}

	apply := func(u *user.User) error {
		if active {
			return u.Activate()
		}
		return u.Deactivate()
	}
	if err := apply(target.Clone()); err != nil {
		return nil, err
	}

	if err := s.gateway.SetEnabled(ctx, target.ExternalID, active); err != nil {
		return nil, err
	}
	updated, err := s.users.Update(ctx, target.ID, apply)
	if err != nil {
		return nil, err
	}

	slog.Info("user active flag changed", "userId", updated.ID, "active", active, "actorId", actor.ID)
	return updated, nil
}

// ResendVerificationEmail asks the identity provider to email actorID again.
func (s *Service) ResendVerificationEmail(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.EmailVerified {
		return fmt.Errorf("%w: email already verified", apperr.ErrBusinessRule)
	}
	return s.gateway.SendVerificationEmail(ctx, actor.ExternalID)
}

func (s *Service) requireActiveCompany(ctx context.Context, companyID uuid.UUID) error {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			return fmt.Errorf("%w: company %s", apperr.ErrInvalidOperation, companyID)
		}
		return err
	}
	if !c.Active {
		return ErrCompanyInactive
	}
	return nil
}
