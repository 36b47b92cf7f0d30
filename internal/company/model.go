package company

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
)

// ErrAlreadyInactive is returned when deactivating an inactive company.
var ErrAlreadyInactive = fmt.Errorf("%w: company already inactive", apperr.ErrBusinessRule)

// ErrNameRequired is returned when a company is created without a name.
var ErrNameRequired = fmt.Errorf("%w: company name is required", apperr.ErrValidation)

// Company represents a row in the companies table. It owns zero or more
// company-scoped users.
type Company struct {
	ID        uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an active company with a trimmed name.
func New(name string) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &Company{Name: name, Active: true}, nil
}

// Deactivate marks the company inactive.
func (c *Company) Deactivate() error {
	if !c.Active {
		return ErrAlreadyInactive
	}
	c.Active = false
	c.UpdatedAt = time.Now().UTC()
	return nil
}
