package rolerequest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/role"
)

// Status is the lifecycle state of a role request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
)

// MaxReasonLength bounds the free-text reason and review notes.
const MaxReasonLength = 1000

var (
	// ErrNotFound is returned when a role request record is not found.
	ErrNotFound = fmt.Errorf("%w: role request", apperr.ErrNotFound)

	// ErrAlreadyProcessed is returned when a request is no longer pending.
	ErrAlreadyProcessed = fmt.Errorf("%w: role request already processed", apperr.ErrBusinessRule)

	// ErrInvalidStatus is returned for a status that is unknown or not a
	// valid review outcome.
	ErrInvalidStatus = fmt.Errorf("%w: invalid status", apperr.ErrValidation)

	// ErrActiveRequestExists is returned when the user already has a pending request.
	ErrActiveRequestExists = fmt.Errorf("%w", apperr.ErrActiveRequestExists)

	// ErrReasonTooLong is returned when reason or notes exceed MaxReasonLength.
	ErrReasonTooLong = fmt.Errorf("%w: text exceeds %d characters", apperr.ErrValidation, MaxReasonLength)

	// ErrRoleAlreadyHeld is returned when the user requests the role they have.
	ErrRoleAlreadyHeld = fmt.Errorf("%w: user already holds the requested role", apperr.ErrBusinessRule)

	// ErrNotRequester is returned when someone other than the requester cancels.
	ErrNotRequester = fmt.Errorf("%w: only the requester may cancel", apperr.ErrForbidden)
)

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusDenied, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusCancelled
}

// RoleRequest is a user's request to be granted a role.
type RoleRequest struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	RequestedRole role.Role
	Reason        string
	Status        Status
	ReviewerID    *uuid.UUID
	ReviewNotes   *string
	CreatedAt     time.Time
	ReviewedAt    *time.Time
}

// Review is the outcome recorded when a request leaves Pending.
type Review struct {
	Status     Status
	ReviewerID uuid.UUID
	Notes      string
	ReviewedAt time.Time
}
