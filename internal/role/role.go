package role

import (
	"fmt"
	"strings"

	"github.com/everest/authsvc/internal/apperr"
)

// Role is one of the five fixed platform roles.
type Role string

const (
	Admin          Role = "admin"
	Partner        Role = "partner"
	Operator       Role = "operator"
	RegisteredUser Role = "registered_user"
	Guest          Role = "guest"
)

// ErrInvalidRole is returned when a role name is not recognized.
var ErrInvalidRole = fmt.Errorf("%w: invalid role", apperr.ErrValidation)

var allRoles = []Role{Admin, Partner, Operator, RegisteredUser, Guest}

// aliases maps accepted spellings (already lower-cased) to roles.
var aliases = map[string]Role{
	"admin":           Admin,
	"partner":         Partner,
	"operator":        Operator,
	"registered_user": RegisteredUser,
	"registereduser":  RegisteredUser,
	"registered-user": RegisteredUser,
	"user":            RegisteredUser,
	"guest":           Guest,
}

// AllRoles returns the five roles ordered from most to least authority.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(name string) (Role, error) {
	r, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, name)
	}
	return r, nil
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsCompanyScoped reports whether users holding r must be assigned to a company.
func IsCompanyScoped(r Role) bool {
	switch r {
	case Admin, Partner, Operator:
		return true
	}
	return false
}

// IsCompanyScoped is a method form of the package function.
func (r Role) IsCompanyScoped() bool { return IsCompanyScoped(r) }

// Rank orders roles by authority; higher is more. Unknown roles rank lowest.
func (r Role) Rank() int {
	switch r {
	case Admin:
		return 4
	case Partner:
		return 3
	case Operator:
		return 2
	case RegisteredUser:
		return 1
	}
	return 0
}

// Outranks reports whether r carries strictly more authority than other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

func (r Role) String() string { return string(r) }

// DisplayName is the realm role name used in the identity provider.
func (r Role) DisplayName() string {
	switch r {
	case Admin:
		return "Admin"
	case Partner:
		return "Partner"
	case Operator:
		return "Operator"
	case RegisteredUser:
		return "RegisteredUser"
	case Guest:
		return "Guest"
	}
	return string(r)
}
