package user

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/role"
)

// ErrCompanyRequired is returned when a company-scoped role has no company.
var ErrCompanyRequired = fmt.Errorf("%w: role requires company assignment", apperr.ErrInvalidOperation)

// ErrRoleNotCompanyScoped is returned when a user whose role is not
// company-scoped is assigned to a company.
var ErrRoleNotCompanyScoped = fmt.Errorf("%w: role cannot be assigned to a company", apperr.ErrInvalidOperation)

// ErrUnexpectedCompany is returned when a new user with a non-scoped role
// carries a company.
var ErrUnexpectedCompany = fmt.Errorf("%w: role must not have a company assignment", apperr.ErrInvalidOperation)

// ErrAlreadyDeactivated is returned by Deactivate on an inactive user.
var ErrAlreadyDeactivated = fmt.Errorf("%w: already deactivated", apperr.ErrBusinessRule)

// ErrAlreadyActive is returned by Activate on an active user.
var ErrAlreadyActive = fmt.Errorf("%w: already active", apperr.ErrBusinessRule)

// User is the local mirror of an identity provider account. ExternalID is
// owned by the identity provider, ID by this service.
type User struct {
	ID            uuid.UUID
	ExternalID    string
	Username      string
	Email         string
	Role          role.Role
	CompanyID     *uuid.UUID // nil for non-scoped roles
	EmailVerified bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New builds an active user and checks that the role and company agree.
func New(externalID, username, email string, r role.Role, companyID *uuid.UUID) (*User, error) {
	u := &User{
		ID:         uuid.New(),
		ExternalID: externalID,
		Username:   username,
		Email:      email,
		Role:       r,
		CompanyID:  cloneID(companyID),
		Active:     true,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

// Validate checks the role/company invariant for a freshly provisioned user.
// A company-scoped role without a company is rejected here even though
// RemoveFromCompany may later produce that state.
func (u *User) Validate() error {
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %q", role.ErrInvalidRole, u.Role)
	}
	if u.Role.IsCompanyScoped() && u.CompanyID == nil {
		return ErrCompanyRequired
	}
	if !u.Role.IsCompanyScoped() && u.CompanyID != nil {
		return ErrUnexpectedCompany
	}
	return nil
}

// ChangeRole moves the user to newRole. Moving to a non-scoped role always
// detaches the user from its company; moving to a scoped role requires a
// company to already be assigned.
func (u *User) ChangeRole(newRole role.Role) error {
	if !newRole.Valid() {
		return fmt.Errorf("%w: %q", role.ErrInvalidRole, newRole)
	}
	if newRole.IsCompanyScoped() {
		if u.CompanyID == nil {
			return ErrCompanyRequired
		}
	} else {
		u.CompanyID = nil
	}
	u.Role = newRole
	u.touch()
	return nil
}

// AssignToCompany binds the user to companyID. It is a no-op when the user
// already belongs to that company.
func (u *User) AssignToCompany(companyID uuid.UUID) error {
	if !u.Role.IsCompanyScoped() {
		return ErrRoleNotCompanyScoped
	}
	if u.CompanyID != nil && *u.CompanyID == companyID {
		return nil
	}
	id := companyID
	u.CompanyID = &id
	u.touch()
	return nil
}

// RemoveFromCompany clears the company assignment without touching the role.
func (u *User) RemoveFromCompany() {
	u.CompanyID = nil
	u.touch()
}

// Deactivate marks the user inactive. Repeated calls are rejected.
func (u *User) Deactivate() error {
	if !u.Active {
		return ErrAlreadyDeactivated
	}
	u.Active = false
	u.touch()
	return nil
}

// Activate marks the user active. Repeated calls are rejected.
func (u *User) Activate() error {
	if u.Active {
		return ErrAlreadyActive
	}
	u.Active = true
	u.touch()
	return nil
}

// MarkEmailVerified records that the identity provider verified the email.
func (u *User) MarkEmailVerified() {
	if u.EmailVerified {
		return
	}
	u.EmailVerified = true
	u.touch()
}

// InCompany reports whether the user is assigned to companyID.
func (u *User) InCompany(companyID uuid.UUID) bool {
	return u.CompanyID != nil && *u.CompanyID == companyID
}

// Clone returns a deep copy safe to mutate.
func (u *User) Clone() *User {
	c := *u
	c.CompanyID = cloneID(u.CompanyID)
	return &c
}

func (u *User) touch() {
	u.UpdatedAt = time.Now().UTC()
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
