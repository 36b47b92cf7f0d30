package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everest/authsvc/internal/api/handler"
	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/rolerequest"
)

func TestCreateRoleRequest_Success(t *testing.T) {
	t.Parallel()

	u := sampleUser(t, role.RegisteredUser)
	svc := &mockService{
		requestRoleFn: func(_ context.Context, actorID uuid.UUID, r, reason string) (*rolerequest.RoleRequest, error) {
			assert.Equal(t, u.ID, actorID)
			assert.Equal(t, "partner", r)
			rr := sampleRoleRequest(actorID, rolerequest.StatusPending)
			rr.Reason = reason
			return rr, nil
		},
	}
	h := handler.NewRoleRequestHandler(svc)
	req, w := makeChiRequest(http.MethodPost, "/role-requests", []byte(`{"role":"partner","reason":"new shop"}`), nil)
	h.Create(w, asUser(req, u))

	require.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "new shop", data["reason"])
	assert.Nil(t, data["reviewerId"])
	assert.Nil(t, data["reviewedAt"])
}

func TestCreateRoleRequest_ActiveRequestExists(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		requestRoleFn: func(context.Context, uuid.UUID, string, string) (*rolerequest.RoleRequest, error) {
			return nil, rolerequest.ErrActiveRequestExists
		},
	}
	h := handler.NewRoleRequestHandler(svc)
	req, w := makeChiRequest(http.MethodPost, "/role-requests", []byte(`{"role":"partner"}`), nil)
	h.Create(w, asUser(req, sampleUser(t, role.RegisteredUser)))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ACTIVE_REQUEST_EXISTS", errorCode(t, w))
}

func TestCreateRoleRequest_UnknownRole(t *testing.T) {
	t.Parallel()

	h := handler.NewRoleRequestHandler(&mockService{})
	req, w := makeChiRequest(http.MethodPost, "/role-requests", []byte(`{"role":"superuser"}`), nil)
	h.Create(w, asUser(req, sampleUser(t, role.RegisteredUser)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestReviewRoleRequest_RejectsCancelledStatus(t *testing.T) {
	t.Parallel()

	h := handler.NewRoleRequestHandler(&mockService{})
	id := uuid.New()
	req, w := makeChiRequest(http.MethodPost, "/role-requests/"+id.String()+"/review",
		[]byte(`{"status":"cancelled"}`), map[string]string{"id": id.String()})
	h.Review(w, asUser(req, sampleUser(t, role.Admin)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestReviewRoleRequest_Approved(t *testing.T) {
	t.Parallel()

	reviewer := sampleUser(t, role.Admin)
	svc := &mockService{
		reviewFn: func(_ context.Context, rv, id uuid.UUID, status, notes string) (*rolerequest.RoleRequest, error) {
			assert.Equal(t, reviewer.ID, rv)
			assert.Equal(t, "Approved", status)
			rr := sampleRoleRequest(uuid.New(), rolerequest.StatusApproved)
			rr.ID = id
			now := time.Now().UTC()
			rr.ReviewerID = &rv
			rr.ReviewNotes = &notes
			rr.ReviewedAt = &now
			return rr, nil
		},
	}
	h := handler.NewRoleRequestHandler(svc)
	id := uuid.New()
	req, w := makeChiRequest(http.MethodPost, "/role-requests/"+id.String()+"/review",
		[]byte(`{"status":"Approved","notes":"welcome"}`), map[string]string{"id": id.String()})
	h.Review(w, asUser(req, reviewer))

	require.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, id.String(), data["id"])
	assert.Equal(t, "approved", data["status"])
	assert.Equal(t, reviewer.ID.String(), data["reviewerId"])
	assert.Equal(t, "welcome", data["reviewNotes"])
	assert.NotNil(t, data["reviewedAt"])
}

func TestReviewRoleRequest_AlreadyProcessed(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		reviewFn: func(context.Context, uuid.UUID, uuid.UUID, string, string) (*rolerequest.RoleRequest, error) {
			return nil, rolerequest.ErrAlreadyProcessed
		},
	}
	h := handler.NewRoleRequestHandler(svc)
	id := uuid.New()
	req, w := makeChiRequest(http.MethodPost, "/role-requests/"+id.String()+"/review",
		[]byte(`{"status":"denied"}`), map[string]string{"id": id.String()})
	h.Review(w, asUser(req, sampleUser(t, role.Admin)))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", errorCode(t, w))
}

func TestCancelRoleRequest_NotRequester(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		cancelFn: func(context.Context, uuid.UUID, uuid.UUID) (*rolerequest.RoleRequest, error) {
			return nil, rolerequest.ErrNotRequester
		},
	}
	h := handler.NewRoleRequestHandler(svc)
	id := uuid.New()
	req, w := makeChiRequest(http.MethodPost, "/role-requests/"+id.String()+"/cancel", nil, map[string]string{"id": id.String()})
	h.Cancel(w, asUser(req, sampleUser(t, role.RegisteredUser)))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCancelRoleRequest_InvalidID(t *testing.T) {
	t.Parallel()

	h := handler.NewRoleRequestHandler(&mockService{})
	req, w := makeChiRequest(http.MethodPost, "/role-requests/abc/cancel", nil, map[string]string{"id": "abc"})
	h.Cancel(w, asUser(req, sampleUser(t, role.RegisteredUser)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestListRoleRequests_PassesStatusFilter(t *testing.T) {
	t.Parallel()

	var gotStatus string
	svc := &mockService{
		listRequestsFn: func(_ context.Context, _ uuid.UUID, status string) ([]rolerequest.RoleRequest, error) {
			gotStatus = status
			return []rolerequest.RoleRequest{*sampleRoleRequest(uuid.New(), rolerequest.StatusPending)}, nil
		},
	}
	h := handler.NewRoleRequestHandler(svc)
	req, w := makeChiRequest(http.MethodGet, "/role-requests?status=pending", nil, nil)
	h.List(w, asUser(req, sampleUser(t, role.Admin)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", gotStatus)
	assert.Len(t, parseEnvelope(t, w)["data"], 1)
}

func TestPendingCount(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		pendingFn: func(context.Context, uuid.UUID) (int, error) { return 3, nil },
	}
	h := handler.NewRoleRequestHandler(svc)
	req, w := makeChiRequest(http.MethodGet, "/role-requests/pending-count", nil, nil)
	h.PendingCount(w, asUser(req, sampleUser(t, role.Admin)))

	require.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["pending"])
}

func TestPendingCount_NonAdmin(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		pendingFn: func(context.Context, uuid.UUID) (int, error) { return 0, apperr.ErrForbidden },
	}
	h := handler.NewRoleRequestHandler(svc)
	req, w := makeChiRequest(http.MethodGet, "/role-requests/pending-count", nil, nil)
	h.PendingCount(w, asUser(req, sampleUser(t, role.Partner)))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
