// Package authz answers whether an actor may act on a target. Every function
// is pure; callers load the actor and target and pass copies in.
package authz

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/user"
)

// Operation names a user-targeted action checked by Authorize.
type Operation string

const (
	OpViewUser          Operation = "user:view"
	OpUpdateUser        Operation = "user:update"
	OpChangeRole        Operation = "user:change-role"
	OpAssignCompany     Operation = "user:assign-company"
	OpRemoveFromCompany Operation = "user:remove-company"
	OpActivateUser      Operation = "user:activate"
	OpDeactivateUser    Operation = "user:deactivate"
	OpViewRoleRequests  Operation = "user:view-role-requests"
)

var operations = []Operation{
	OpViewUser, OpUpdateUser, OpChangeRole, OpAssignCompany,
	OpRemoveFromCompany, OpActivateUser, OpDeactivateUser, OpViewRoleRequests,
}

// ErrUnknownOperation is returned by ParseOperation for unrecognized names.
var ErrUnknownOperation = fmt.Errorf("%w: unknown operation", apperr.ErrValidation)

// Operations lists every operation accepted by Authorize.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// ParseOperation validates an operation name.
func ParseOperation(name string) (Operation, error) {
	for _, op := range operations {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// CanManageUser reports whether actor may act on target at all.
//
// A company-scoped actor without a company manages no one but itself.
func CanManageUser(actor, target *user.User) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return true
	}
	switch actor.Role {
	case role.Admin:
		return true
	case role.Partner, role.Operator:
		return actor.CompanyID != nil && target.InCompany(*actor.CompanyID)
	}
	return false
}

// CanManageCompany reports whether actor may act on companyID.
func CanManageCompany(actor *user.User, companyID uuid.UUID) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case role.Admin:
		return true
	case role.Partner, role.Operator:
		return actor.InCompany(companyID)
	}
	return false
}

// CanChangeRole reports whether actor may move target to newRole. Only an
// Admin may grant Admin, and non-Admins cannot grant a role that outranks
// their own.
func CanChangeRole(actor, target *user.User, newRole role.Role) bool {
	if !CanManageUser(actor, target) || !newRole.Valid() {
		return false
	}
	if actor.Role == role.Admin {
		return true
	}
	if newRole == role.Admin || newRole.Outranks(actor.Role) {
		return false
	}
	return role.PermissionsOf(actor.Role).Has(role.PermUsersWrite)
}

// ComputePermissions returns the role permissions of u plus, for a
// company-scoped role with a company, the manage-company tag.
func ComputePermissions(u *user.User) role.PermissionSet {
	perms := role.PermissionsOf(u.Role)
	if u.Role.IsCompanyScoped() && u.CompanyID != nil {
		perms.Add(role.ManageCompany(u.CompanyID.String()))
	}
	return perms
}

// Authorize decides op for actor against target. Inactive actors are denied
// everything.
func Authorize(actor *user.User, op Operation, target *user.User) bool {
	if actor == nil || target == nil || !actor.Active {
		return false
	}
	if !CanManageUser(actor, target) {
		return false
	}

	self := actor.ID == target.ID
	perms := ComputePermissions(actor)

	switch op {
	case OpViewUser:
		return true
	case OpUpdateUser:
		if self {
			return perms.Has(role.PermUsersWriteSelf) || perms.Has(role.PermUsersWrite)
		}
		return perms.Has(role.PermUsersWrite)
	case OpChangeRole, OpAssignCompany, OpRemoveFromCompany:
		return perms.Has(role.PermUsersWrite)
	case OpActivateUser, OpDeactivateUser:
		return !self && perms.Has(role.PermUsersWrite)
	case OpViewRoleRequests:
		return self || perms.Has(role.PermRoleRequestsReview)
	}
	return false
}

// CanReviewRoleRequest reports whether reviewer may resolve a request made by
// requester for requested.
func CanReviewRoleRequest(reviewer, requester *user.User, requested role.Role) bool {
	if reviewer == nil || requester == nil || !reviewer.Active {
		return false
	}
	if reviewer.ID == requester.ID {
		return false
	}
	if !role.PermissionsOf(reviewer.Role).Has(role.PermRoleRequestsReview) {
		return false
	}
	if requested == role.Admin && reviewer.Role != role.Admin {
		return false
	}
	return CanManageUser(reviewer, requester)
}
