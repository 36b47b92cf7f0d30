package role

import (
	"sort"
	"strings"
)

// Permission is an opaque capability tag consumed by downstream checks.
type Permission string

const (
	PermUsersRead          Permission = "users:read"
	PermUsersWrite         Permission = "users:write"
	PermUsersDelete        Permission = "users:delete"
	PermUsersReadSelf      Permission = "users:read:self"
	PermUsersWriteSelf     Permission = "users:write:self"
	PermCompaniesRead      Permission = "companies:read"
	PermCompaniesWrite     Permission = "companies:write"
	PermCompaniesDelete    Permission = "companies:delete"
	PermAuditRead          Permission = "audit:read"
	PermRoleRequestsCreate Permission = "role-requests:create"
	PermRoleRequestsReview Permission = "role-requests:review"
	PermPublicRead         Permission = "public:read"
)

// manageCompanyPrefix prefixes the company-scoped permission tag.
const manageCompanyPrefix = "manage-company:"

var permissionTable = map[Role][]Permission{
	Admin: {
		PermUsersRead, PermUsersWrite, PermUsersDelete,
		PermCompaniesRead, PermCompaniesWrite, PermCompaniesDelete,
		PermAuditRead, PermRoleRequestsReview,
	},
	Partner: {
		PermUsersRead, PermUsersWrite,
		PermCompaniesRead, PermRoleRequestsReview,
	},
	Operator: {
		PermUsersRead, PermUsersWrite,
		PermCompaniesRead,
	},
	RegisteredUser: {
		PermUsersReadSelf, PermUsersWriteSelf,
		PermRoleRequestsCreate,
	},
	Guest: {
		PermPublicRead,
	},
}

// PermissionSet is an unordered set of permission tags.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given tags.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts p into the set.
func (s PermissionSet) Add(p Permission) {
	s[p] = struct{}{}
}

// Sorted returns the tags in lexical order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// PermissionsOf returns a fresh copy of the fixed permission set for r.
// Unknown roles carry no permissions.
func PermissionsOf(r Role) PermissionSet {
	return NewPermissionSet(permissionTable[r]...)
}

// ManageCompany returns the scoped tag granting management of companyID.
func ManageCompany(companyID string) Permission {
	return Permission(manageCompanyPrefix + companyID)
}

// ManagedCompany extracts the company id from a manage-company tag.
func ManagedCompany(p Permission) (string, bool) {
	s := string(p)
	if !strings.HasPrefix(s, manageCompanyPrefix) || len(s) == len(manageCompanyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, manageCompanyPrefix), true
}
