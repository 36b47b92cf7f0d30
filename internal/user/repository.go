package user

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
)

// ErrNotFound is returned when a user record is not found.
var ErrNotFound = fmt.Errorf("%w", apperr.ErrUserNotFound)

// ErrDuplicate is returned when the external id, username or email is taken.
var ErrDuplicate = fmt.Errorf("%w: user already exists", apperr.ErrConflict)

// Repository persists mirrored user rows.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	// Save inserts the user or updates the existing row with the same ID.
	Save(ctx context.Context, u *User) error
	// Update loads the current row for id under a lock, applies fn to it and
	// saves the result. Nothing is written when fn returns an error.
	Update(ctx context.Context, id uuid.UUID, fn func(*User) error) (*User, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]User, error)
	// ListUpdatedSince returns users ordered by (updated_at, id) that sort
	// strictly after the cursor.
	ListUpdatedSince(ctx context.Context, after Cursor, limit int) ([]User, error)
}

// Cursor is a position in the (updated_at, id) ordering of users. Rows that
// share an updated_at are told apart by id so paging never skips them.
type Cursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

// After reports whether u sorts strictly after c.
func (c Cursor) After(u *User) bool {
	if u.UpdatedAt.Equal(c.UpdatedAt) {
		return bytes.Compare(u.ID[:], c.ID[:]) > 0
	}
	return u.UpdatedAt.After(c.UpdatedAt)
}

// CursorOf returns the cursor positioned at u.
func CursorOf(u *User) Cursor {
	return Cursor{UpdatedAt: u.UpdatedAt, ID: u.ID}
}
