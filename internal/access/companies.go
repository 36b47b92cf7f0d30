package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/role"
)

// CreateCompany creates an active company. Admin only.
func (s *Service) CreateCompany(ctx context.Context, actorID uuid.UUID, name string) (*company.Company, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(actor, role.PermCompaniesWrite); err != nil {
		return nil, err
	}

	c, err := company.New(name)
	if err != nil {
		return nil, err
	}
	if err := s.companies.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCompany returns companyID if actorID may manage it.
func (s *Service) GetCompany(ctx context.Context, actorID, companyID uuid.UUID) (*company.Company, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageCompany(actor, companyID) {
		return nil, apperr.ErrForbidden
	}
	return s.companies.GetByID(ctx, companyID)
}

// ListCompanies returns every company for Admins and the actor's own
// company for Partners and Operators.
func (s *Service) ListCompanies(ctx context.Context, actorID uuid.UUID) ([]company.Company, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(actor, role.PermCompaniesRead); err != nil {
		return nil, err
	}

	if actor.Role == role.Admin {
		return s.companies.List(ctx)
	}
	if actor.CompanyID == nil {
		return []company.Company{}, nil
	}
	c, err := s.companies.GetByID(ctx, *actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return []company.Company{*c}, nil
}

// DeactivateCompany marks companyID inactive. Admin only.
func (s *Service) DeactivateCompany(ctx context.Context, actorID, companyID uuid.UUID) (*company.Company, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(actor, role.PermCompaniesDelete); err != nil {
		return nil, err
	}

	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := c.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.companies.SetActive(ctx, c.ID, false); err != nil {
		return nil, err
	}
	return c, nil
}
