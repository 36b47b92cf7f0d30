package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/rolerequest"
)

// RequestRoleChange opens a role request for the actor.
func (s *Service) RequestRoleChange(ctx context.Context, actorID uuid.UUID, requestedRole, reason string) (*rolerequest.RoleRequest, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.workflow.Create(ctx, actor.ID, requestedRole, reason)
}

// ReviewRoleChange resolves a pending request. The reviewer must be allowed
// to manage the requester, and only an Admin may approve the Admin role.
func (s *Service) ReviewRoleChange(ctx context.Context, reviewerID, requestID uuid.UUID, status, notes string) (*rolerequest.RoleRequest, error) {
	reviewer, err := s.loadActor(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	st, err := rolerequest.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	rr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	requester, err := s.users.GetByID(ctx, rr.UserID)
	if err != nil {
		return nil, err
	}
	if !authz.CanReviewRoleRequest(reviewer, requester, rr.RequestedRole) {
		return nil, apperr.ErrForbidden
	}

	return s.workflow.Review(ctx, requestID, st, reviewer.ID, notes)
}

// CancelRoleRequest withdraws the actor's own pending request.
func (s *Service) CancelRoleRequest(ctx context.Context, actorID, requestID uuid.UUID) (*rolerequest.RoleRequest, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.workflow.Cancel(ctx, requestID, actor.ID)
}

// ListRoleRequests returns requests in status that the reviewer may act on.
// An empty status lists every request.
func (s *Service) ListRoleRequests(ctx context.Context, reviewerID uuid.UUID, status string) ([]rolerequest.RoleRequest, error) {
	reviewer, err := s.loadActor(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(reviewer, role.PermRoleRequestsReview); err != nil {
		return nil, err
	}

	var st rolerequest.Status
	if status != "" {
		if st, err = rolerequest.ParseStatus(status); err != nil {
			return nil, err
		}
	}

	all, err := s.requests.List(ctx, st)
	if err != nil {
		return nil, err
	}
	if reviewer.Role == role.Admin {
		return all, nil
	}

	visible := make([]rolerequest.RoleRequest, 0, len(all))
	for _, rr := range all {
		requester, err := s.users.GetByID(ctx, rr.UserID)
		if err != nil {
			continue
		}
		if authz.CanManageUser(reviewer, requester) {
			visible = append(visible, rr)
		}
	}
	return visible, nil
}

// ListUserRoleRequests returns the requests made by targetID.
func (s *Service) ListUserRoleRequests(ctx context.Context, actorID, targetID uuid.UUID) ([]rolerequest.RoleRequest, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeTarget(ctx, actor, authz.OpViewRoleRequests, targetID); err != nil {
		return nil, err
	}
	return s.requests.ListByUser(ctx, targetID)
}

// PendingRoleRequestCount returns the number of pending requests. Admin only.
func (s *Service) PendingRoleRequestCount(ctx context.Context, actorID uuid.UUID) (int, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if actor.Role != role.Admin {
		return 0, apperr.ErrForbidden
	}
	return s.requests.CountPending(ctx)
}
