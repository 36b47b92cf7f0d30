package access_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/rolerequest"
	"github.com/everest/authsvc/internal/user"
)

// --- Mock Gateway ---

type mockGateway struct {
	mu sync.Mutex

	createUserFn   func(ctx context.Context, p idp.UserProfile, password string) (string, error)
	setEnabledFn   func(ctx context.Context, externalID string, enabled bool) error
	assignRoleFn   func(ctx context.Context, externalID string, r role.Role) error
	authenticateFn func(ctx context.Context, username, password string) (*idp.EndUserToken, error)
	introspectFn   func(ctx context.Context, token string) (*idp.Claims, error)

	enabledCalls []bool
	assigned     []role.Role
	removed      []role.Role
	introspects  int
	verifyEmails int
	logouts      int
}

func (m *mockGateway) CreateUser(ctx context.Context, p idp.UserProfile, password string) (string, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, p, password)
	}
	return "kc-" + uuid.NewString(), nil
}

func (m *mockGateway) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	m.mu.Lock()
	m.enabledCalls = append(m.enabledCalls, enabled)
	m.mu.Unlock()
	if m.setEnabledFn != nil {
		return m.setEnabledFn(ctx, externalID, enabled)
	}
	return nil
}

func (m *mockGateway) AssignRealmRole(ctx context.Context, externalID string, r role.Role) error {
	m.mu.Lock()
	m.assigned = append(m.assigned, r)
	m.mu.Unlock()
	if m.assignRoleFn != nil {
		return m.assignRoleFn(ctx, externalID, r)
	}
	return nil
}

func (m *mockGateway) RemoveRealmRole(_ context.Context, _ string, r role.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, r)
	return nil
}

func (m *mockGateway) SendVerificationEmail(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyEmails++
	return nil
}

func (m *mockGateway) AuthenticateUser(ctx context.Context, username, password string) (*idp.EndUserToken, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, password)
	}
	return &idp.EndUserToken{AccessToken: "at", RefreshToken: "rt"}, nil
}

func (m *mockGateway) RefreshEndUserToken(_ context.Context, rt string) (*idp.EndUserToken, error) {
	return &idp.EndUserToken{AccessToken: "at-" + rt, RefreshToken: rt}, nil
}

func (m *mockGateway) IntrospectOrUserInfo(ctx context.Context, token string) (*idp.Claims, error) {
	m.mu.Lock()
	m.introspects++
	m.mu.Unlock()
	if m.introspectFn != nil {
		return m.introspectFn(ctx, token)
	}
	return &idp.Claims{Subject: token}, nil
}

func (m *mockGateway) Logout(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logouts++
	return nil
}

// --- Mock User Repository ---

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]user.User
	saveFn func(ctx context.Context, u *user.User) error
}

func newMockUserRepo(us ...*user.User) *mockUserRepo {
	m := &mockUserRepo{users: map[uuid.UUID]user.User{}}
	for _, u := range us {
		m.users[u.ID] = *u.Clone()
	}
	return m
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u.Clone(), nil
}

func (m *mockUserRepo) GetByExternalID(_ context.Context, ext string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == ext {
			return u.Clone(), nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) Save(ctx context.Context, u *user.User) error {
	if m.saveFn != nil {
		if err := m.saveFn(ctx, u); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u.Clone()
	return nil
}

func (m *mockUserRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []user.User{}
	for _, u := range m.users {
		if u.InCompany(companyID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id uuid.UUID, fn func(*user.User) error) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := cur.Clone()
	if err := fn(u); err != nil {
		return nil, err
	}
	if m.saveFn != nil {
		if err := m.saveFn(ctx, u); err != nil {
			return nil, err
		}
	}
	m.users[id] = *u.Clone()
	return u, nil
}

func (m *mockUserRepo) ListUpdatedSince(context.Context, user.Cursor, int) ([]user.User, error) {
	return []user.User{}, nil
}

func (m *mockUserRepo) get(id uuid.UUID) user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// --- Mock Company Repository ---

type mockCompanyRepo struct {
	mu        sync.Mutex
	companies map[uuid.UUID]company.Company
}

func newMockCompanyRepo(cs ...company.Company) *mockCompanyRepo {
	m := &mockCompanyRepo{companies: map[uuid.UUID]company.Company{}}
	for _, c := range cs {
		m.companies[c.ID] = c
	}
	return m
}

func (m *mockCompanyRepo) Create(_ context.Context, c *company.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.companies {
		if existing.Name == c.Name {
			return company.ErrDuplicateName
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	m.companies[c.ID] = *c
	return nil
}

func (m *mockCompanyRepo) GetByID(_ context.Context, id uuid.UUID) (*company.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, company.ErrNotFound
	}
	return &c, nil
}

func (m *mockCompanyRepo) List(context.Context) ([]company.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []company.Company{}
	for _, c := range m.companies {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCompanyRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return company.ErrNotFound
	}
	c.Active = active
	m.companies[id] = c
	return nil
}

// --- Mock Role Request Repository ---

type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]rolerequest.RoleRequest
	users    *mockUserRepo
}

func newMockRequestRepo(users *mockUserRepo) *mockRequestRepo {
	return &mockRequestRepo{requests: map[uuid.UUID]rolerequest.RoleRequest{}, users: users}
}

func (m *mockRequestRepo) Create(_ context.Context, rr *rolerequest.RoleRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.UserID == rr.UserID && existing.Status == rolerequest.StatusPending {
			return rolerequest.ErrActiveRequestExists
		}
	}
	rr.ID = uuid.New()
	rr.Status = rolerequest.StatusPending
	rr.CreatedAt = time.Now().UTC()
	m.requests[rr.ID] = *rr
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*rolerequest.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rr, ok := m.requests[id]
	if !ok {
		return nil, rolerequest.ErrNotFound
	}
	return &rr, nil
}

func (m *mockRequestRepo) FindPendingByUser(_ context.Context, userID uuid.UUID) (*rolerequest.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rr := range m.requests {
		if rr.UserID == userID && rr.Status == rolerequest.StatusPending {
			return &rr, nil
		}
	}
	return nil, rolerequest.ErrNotFound
}

func (m *mockRequestRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]rolerequest.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []rolerequest.RoleRequest{}
	for _, rr := range m.requests {
		if rr.UserID == userID {
			out = append(out, rr)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) List(_ context.Context, status rolerequest.Status) ([]rolerequest.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []rolerequest.RoleRequest{}
	for _, rr := range m.requests {
		if status == "" || rr.Status == status {
			out = append(out, rr)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) CountPending(ctx context.Context) (int, error) {
	l, err := m.List(ctx, rolerequest.StatusPending)
	return len(l), err
}

func (m *mockRequestRepo) Resolve(ctx context.Context, id uuid.UUID, review rolerequest.Review, applyToUser func(*user.User) error) (*rolerequest.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rr, ok := m.requests[id]
	if !ok {
		return nil, rolerequest.ErrNotFound
	}
	if rr.Status != rolerequest.StatusPending {
		return nil, rolerequest.ErrAlreadyProcessed
	}
	if applyToUser != nil {
		if _, err := m.users.Update(ctx, rr.UserID, applyToUser); err != nil {
			return nil, err
		}
	}
	reviewer, at := review.ReviewerID, review.ReviewedAt
	rr.Status = review.Status
	rr.ReviewerID = &reviewer
	rr.ReviewedAt = &at
	m.requests[id] = rr
	return &rr, nil
}

// --- Mock Claims Cache ---

type mockCache struct {
	mu      sync.Mutex
	entries map[string]*idp.Claims
}

func newMockCache() *mockCache { return &mockCache{entries: map[string]*idp.Claims{}} }

func (m *mockCache) Get(_ context.Context, tok string) (*idp.Claims, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[tok]
	return c, ok
}

func (m *mockCache) Set(_ context.Context, tok string, c *idp.Claims, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tok] = c
}

func (m *mockCache) Delete(_ context.Context, tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, tok)
}
