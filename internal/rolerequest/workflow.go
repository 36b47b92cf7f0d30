// Package rolerequest implements the role request state machine. A request
// starts Pending and moves once to Approved, Denied or Cancelled.
package rolerequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/user"
)

// RoleSyncer pushes a role change to the identity provider. It must be
// idempotent so a failed review can be retried.
type RoleSyncer interface {
	SyncRole(ctx context.Context, u *user.User, previous role.Role) error
}

// Workflow validates and applies role request transitions.
type Workflow struct {
	requests Repository
	users    user.Repository
	syncer   RoleSyncer
	now      func() time.Time
}

// NewWorkflow creates a Workflow. syncer may be nil when no identity provider
// sync is wanted.
func NewWorkflow(requests Repository, users user.Repository, syncer RoleSyncer) *Workflow {
	return &Workflow{
		requests: requests,
		users:    users,
		syncer:   syncer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending request for userID.
func (w *Workflow) Create(ctx context.Context, userID uuid.UUID, requestedRole, reason string) (*RoleRequest, error) {
	u, err := w.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	_, err = w.requests.FindPendingByUser(ctx, userID)
	switch {
	case err == nil:
		return nil, ErrActiveRequestExists
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	r, err := role.ParseRole(requestedRole)
	if err != nil {
		return nil, err
	}
	if r == u.Role {
		return nil, ErrRoleAlreadyHeld
	}

	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	rr := &RoleRequest{
		UserID:        userID,
		RequestedRole: r,
		Reason:        reason,
		Status:        StatusPending,
	}
	if err := w.requests.Create(ctx, rr); err != nil {
		return nil, err
	}

	slog.Info("role request created", "requestId", rr.ID, "userId", userID, "role", r)
	return rr, nil
}

// Review moves a pending request to newStatus. Approval changes the
// requester's role in the same transaction as the status change, applied to
// the row as it is at commit time so concurrent edits to other fields
// survive. If the role change is invalid the request stays Pending.
func (w *Workflow) Review(ctx context.Context, requestID uuid.UUID, newStatus Status, reviewerID uuid.UUID, notes string) (*RoleRequest, error) {
	rr, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rr.Status != StatusPending {
		return nil, ErrAlreadyProcessed
	}
	if !newStatus.Terminal() {
		return nil, fmt.Errorf("%w: %q is not a review outcome", ErrInvalidStatus, newStatus)
	}
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	review := Review{
		Status:     newStatus,
		ReviewerID: reviewerID,
		Notes:      notes,
		ReviewedAt: w.now(),
	}

	if newStatus != StatusApproved {
		return w.resolve(ctx, rr, review, nil)
	}

	original, err := w.users.GetByID(ctx, rr.UserID)
	if err != nil {
		return nil, err
	}
	changed := original.Clone()
	if err := changed.ChangeRole(rr.RequestedRole); err != nil {
		return nil, err
	}

	if w.syncer != nil {
		if err := w.syncer.SyncRole(ctx, changed, original.Role); err != nil {
			return nil, err
		}
	}

	resolved, err := w.resolve(ctx, rr, review, func(u *user.User) error {
		return u.ChangeRole(rr.RequestedRole)
	})
	if err != nil {
		w.revertSync(ctx, original, changed.Role)
		return nil, err
	}
	return resolved, nil
}

// Cancel lets the requester withdraw a pending request.
func (w *Workflow) Cancel(ctx context.Context, requestID, userID uuid.UUID) (*RoleRequest, error) {
	rr, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rr.UserID != userID {
		return nil, ErrNotRequester
	}
	if rr.Status != StatusPending {
		return nil, ErrAlreadyProcessed
	}
	return w.resolve(ctx, rr, Review{
		Status:     StatusCancelled,
		ReviewerID: userID,
		ReviewedAt: w.now(),
	}, nil)
}

func (w *Workflow) resolve(ctx context.Context, rr *RoleRequest, review Review, applyToUser func(*user.User) error) (*RoleRequest, error) {
	resolved, err := w.requests.Resolve(ctx, rr.ID, review, applyToUser)
	if err != nil {
		return nil, err
	}
	slog.Info("role request resolved",
		"requestId", rr.ID,
		"userId", rr.UserID,
		"status", review.Status,
		"reviewerId", review.ReviewerID,
	)
	return resolved, nil
}

// revertSync restores the identity provider role after the local commit
// failed, so the two stores do not disagree.
func (w *Workflow) revertSync(ctx context.Context, original *user.User, applied role.Role) {
	if w.syncer == nil {
		return
	}
	if err := w.syncer.SyncRole(ctx, original, applied); err != nil {
		slog.Error("reverting identity provider role failed",
			"userId", original.ID,
			"role", original.Role,
			"error", err,
		)
	}
}
