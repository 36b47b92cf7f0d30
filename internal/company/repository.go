package company

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
)

// ErrNotFound is returned when a company record is not found.
var ErrNotFound = fmt.Errorf("%w: company", apperr.ErrNotFound)

// ErrDuplicateName is returned when a company with the same name already exists.
var ErrDuplicateName = fmt.Errorf("%w: company name already exists", apperr.ErrConflict)

// Repository provides CRUD operations on the companies table.
type Repository interface {
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*Company, error)
	List(ctx context.Context) ([]Company, error)
	// SetActive persists the active flag. Returns ErrNotFound for unknown ids.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
