package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/everest/authsvc/internal/access"
	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/rolerequest"
	"github.com/everest/authsvc/internal/user"
)

// --- Mock Service ---

type mockService struct {
	authenticateFn func(ctx context.Context, username, password string) (*idp.EndUserToken, error)
	refreshFn      func(ctx context.Context, rt string) (*idp.EndUserToken, error)
	registerFn     func(ctx context.Context, in access.RegisterInput) (*user.User, error)
	logoutFn       func(ctx context.Context, at, rt string) error
	resendFn       func(ctx context.Context, actorID uuid.UUID) error

	getUserFn       func(ctx context.Context, actorID, targetID uuid.UUID) (*user.User, error)
	authorizeFn     func(ctx context.Context, actorID uuid.UUID, op authz.Operation, targetID uuid.UUID) (bool, error)
	provisionFn     func(ctx context.Context, actorID uuid.UUID, in access.ProvisionInput) (*user.User, error)
	changeRoleFn    func(ctx context.Context, actorID, targetID uuid.UUID, r string) (*user.User, error)
	assignCompanyFn func(ctx context.Context, actorID, targetID, companyID uuid.UUID) (*user.User, error)
	removeCompanyFn func(ctx context.Context, actorID, targetID uuid.UUID) (*user.User, error)
	setActiveFn     func(ctx context.Context, actorID, targetID uuid.UUID, active bool) (*user.User, error)
	userRequestsFn  func(ctx context.Context, actorID, targetID uuid.UUID) ([]rolerequest.RoleRequest, error)

	createCompanyFn     func(ctx context.Context, actorID uuid.UUID, name string) (*company.Company, error)
	getCompanyFn        func(ctx context.Context, actorID, companyID uuid.UUID) (*company.Company, error)
	listCompaniesFn     func(ctx context.Context, actorID uuid.UUID) ([]company.Company, error)
	deactivateCompanyFn func(ctx context.Context, actorID, companyID uuid.UUID) (*company.Company, error)

	requestRoleFn  func(ctx context.Context, actorID uuid.UUID, r, reason string) (*rolerequest.RoleRequest, error)
	reviewFn       func(ctx context.Context, reviewerID, requestID uuid.UUID, status, notes string) (*rolerequest.RoleRequest, error)
	cancelFn       func(ctx context.Context, actorID, requestID uuid.UUID) (*rolerequest.RoleRequest, error)
	listRequestsFn func(ctx context.Context, reviewerID uuid.UUID, status string) ([]rolerequest.RoleRequest, error)
	pendingFn      func(ctx context.Context, actorID uuid.UUID) (int, error)
}

func (m *mockService) Authenticate(ctx context.Context, u, p string) (*idp.EndUserToken, error) {
	return m.authenticateFn(ctx, u, p)
}

func (m *mockService) Refresh(ctx context.Context, rt string) (*idp.EndUserToken, error) {
	return m.refreshFn(ctx, rt)
}

func (m *mockService) Register(ctx context.Context, in access.RegisterInput) (*user.User, error) {
	return m.registerFn(ctx, in)
}

func (m *mockService) Logout(ctx context.Context, at, rt string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, at, rt)
	}
	return nil
}

func (m *mockService) ResendVerificationEmail(ctx context.Context, actorID uuid.UUID) error {
	if m.resendFn != nil {
		return m.resendFn(ctx, actorID)
	}
	return nil
}

func (m *mockService) GetUser(ctx context.Context, a, t uuid.UUID) (*user.User, error) {
	return m.getUserFn(ctx, a, t)
}

func (m *mockService) Authorize(ctx context.Context, a uuid.UUID, op authz.Operation, t uuid.UUID) (bool, error) {
	return m.authorizeFn(ctx, a, op, t)
}

func (m *mockService) ProvisionUser(ctx context.Context, a uuid.UUID, in access.ProvisionInput) (*user.User, error) {
	return m.provisionFn(ctx, a, in)
}

func (m *mockService) ChangeUserRole(ctx context.Context, a, t uuid.UUID, r string) (*user.User, error) {
	return m.changeRoleFn(ctx, a, t, r)
}

func (m *mockService) AssignCompany(ctx context.Context, a, t, c uuid.UUID) (*user.User, error) {
	return m.assignCompanyFn(ctx, a, t, c)
}

func (m *mockService) RemoveFromCompany(ctx context.Context, a, t uuid.UUID) (*user.User, error) {
	return m.removeCompanyFn(ctx, a, t)
}

func (m *mockService) SetUserActive(ctx context.Context, a, t uuid.UUID, active bool) (*user.User, error) {
	return m.setActiveFn(ctx, a, t, active)
}

func (m *mockService) ListUserRoleRequests(ctx context.Context, a, t uuid.UUID) ([]rolerequest.RoleRequest, error) {
	return m.userRequestsFn(ctx, a, t)
}

func (m *mockService) CreateCompany(ctx context.Context, a uuid.UUID, name string) (*company.Company, error) {
	return m.createCompanyFn(ctx, a, name)
}

func (m *mockService) GetCompany(ctx context.Context, a, c uuid.UUID) (*company.Company, error) {
	return m.getCompanyFn(ctx, a, c)
}

func (m *mockService) ListCompanies(ctx context.Context, a uuid.UUID) ([]company.Company, error) {
	return m.listCompaniesFn(ctx, a)
}

func (m *mockService) DeactivateCompany(ctx context.Context, a, c uuid.UUID) (*company.Company, error) {
	return m.deactivateCompanyFn(ctx, a, c)
}

func (m *mockService) RequestRoleChange(ctx context.Context, a uuid.UUID, r, reason string) (*rolerequest.RoleRequest, error) {
	return m.requestRoleFn(ctx, a, r, reason)
}

func (m *mockService) ReviewRoleChange(ctx context.Context, rv, id uuid.UUID, status, notes string) (*rolerequest.RoleRequest, error) {
	return m.reviewFn(ctx, rv, id, status, notes)
}

func (m *mockService) CancelRoleRequest(ctx context.Context, a, id uuid.UUID) (*rolerequest.RoleRequest, error) {
	return m.cancelFn(ctx, a, id)
}

func (m *mockService) ListRoleRequests(ctx context.Context, rv uuid.UUID, status string) ([]rolerequest.RoleRequest, error) {
	return m.listRequestsFn(ctx, rv, status)
}

func (m *mockService) PendingRoleRequestCount(ctx context.Context, a uuid.UUID) (int, error) {
	return m.pendingFn(ctx, a)
}

// --- Helpers ---

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

// asUser attaches a principal for u to req.
func asUser(req *http.Request, u *user.User) *http.Request {
	p := &access.Principal{User: u, Permissions: authz.ComputePermissions(u)}
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseEnvelope(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "expected an error object")
	return errObj["code"].(string)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

var sampleCompanyID = uuid.New()

func sampleUser(t *testing.T, r role.Role) *user.User {
	t.Helper()
	var companyID *uuid.UUID
	if r.IsCompanyScoped() {
		id := sampleCompanyID
		companyID = &id
	}
	u, err := user.New("kc-"+uuid.NewString(), string(r)+"-user", string(r)+"@example.com", r, companyID)
	require.NoError(t, err)
	return u
}

func sampleRoleRequest(userID uuid.UUID, status rolerequest.Status) *rolerequest.RoleRequest {
	return &rolerequest.RoleRequest{
		ID:            uuid.New(),
		UserID:        userID,
		RequestedRole: role.Partner,
		Reason:        "growing the team",
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
}
