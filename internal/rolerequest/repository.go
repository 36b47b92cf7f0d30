package rolerequest

import (
	"context"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/user"
)

// Repository stores role requests. It does not enforce workflow rules except
// the compare-and-swap in Resolve.
type Repository interface {
	// Create inserts a pending request. A second pending request for the same
	// user returns ErrActiveRequestExists.
	Create(ctx context.Context, rr *RoleRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*RoleRequest, error)
	// FindPendingByUser returns ErrNotFound when the user has no pending request.
	FindPendingByUser(ctx context.Context, userID uuid.UUID) (*RoleRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]RoleRequest, error)
	// List returns requests in status, or all requests when status is empty.
	List(ctx context.Context, status Status) ([]RoleRequest, error)
	CountPending(ctx context.Context) (int, error)
	// Resolve moves the request out of Pending only if it is still Pending and,
	// in the same transaction, applies applyToUser to the requester's current
	// row when it is non-nil. A request that is no longer Pending yields
	// ErrAlreadyProcessed and nothing is written; an applyToUser error rolls
	// the whole review back.
	Resolve(ctx context.Context, id uuid.UUID, review Review, applyToUser func(*user.User) error) (*RoleRequest, error)
}
