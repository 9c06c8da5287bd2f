package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"loomos.org/internal/auth"
	"loomos.org/internal/tenant"
)

type fakeSessions struct {
	sessions map[string]auth.Session
}

func (f *fakeSessions) VerifyAccess(_ context.Context, token string) (auth.Session, error) {
	s, ok := f.sessions[token]
	if !ok {
		return auth.Session{}, auth.ErrInvalidToken
	}
	return s, nil
}

type fakeTenants struct {
	byHost map[string]*tenant.Organization
	byID   map[string]*tenant.Organization
}

func (f *fakeTenants) Resolve(_ context.Context, host string, identity auth.Identity) (*tenant.Organization, error) {
	org := f.byHost[host]
	if org == nil && identity.OrganizationID != "" {
		org = f.byID[identity.OrganizationID]
	}
	if org == nil {
		return nil, tenant.ErrNotFound
	}
	if !org.Available() && !identity.Role.IsSuperAdmin() {
		return nil, tenant.ErrSuspended
	}
	cp := *org
	return &cp, nil
}

type countingHandler struct {
	mu       sync.Mutex
	calls    int
	identity auth.Identity
	org      *tenant.Organization
	hasOrg   bool
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.identity, _ = auth.IdentityFromContext(r.Context())
	h.org, h.hasOrg = tenant.OrganizationFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func session(role auth.Role, orgID string) auth.Session {
	now := time.Now().UTC()
	return auth.Session{
		Identity: auth.Identity{
			UserID:         "user-" + string(role),
			Email:          "user@acme.test",
			Role:           role,
			OrganizationID: orgID,
		},
		TokenID:   "jti-" + string(role),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func newTestPipeline(t *testing.T, suspended bool) (*Pipeline, *fakeSessions) {
	t.Helper()
	acme := &tenant.Organization{
		ID:        "acme",
		Name:      "Acme Commons",
		Slug:      "acme",
		Subdomain: "acme",
		Active:    true,
		Suspended: suspended,
	}
	sessions := &fakeSessions{sessions: map[string]auth.Session{
		"resident-token": session(auth.RoleResident, "acme"),
		"board-token":    session(auth.RoleBoardMember, "acme"),
		"admin-token":    session(auth.RoleAdmin, "acme"),
		"super-token":    session(auth.RoleSuperAdmin, ""),
	}}
	tenants := &fakeTenants{
		byHost: map[string]*tenant.Organization{"acme.loomos.com": acme},
		byID:   map[string]*tenant.Organization{"acme": acme},
	}
	p, err := NewPipeline(sessions, tenants)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, sessions
}

func doRequest(t *testing.T, handler http.Handler, token, host string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if host != "" {
		req.Host = host
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeErrorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return body
}

// Scenario A: resident on an any-authenticated route sees identity and tenant.
func TestAuthenticatedResidentReachesHandler(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AnyAuthenticated, h)

	rr := doRequest(t, wrapped, "resident-token", "acme.loomos.com")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if h.calls != 1 {
		t.Fatalf("expected exactly one handler call, got %d", h.calls)
	}
	if h.identity.Role != auth.RoleResident {
		t.Fatalf("unexpected identity: %+v", h.identity)
	}
	if !h.hasOrg || h.org.ID != "acme" {
		t.Fatalf("expected acme organization, got %+v", h.org)
	}
}

// Scenario C: no token yields 401 UNAUTHENTICATED, handler untouched.
func TestMissingTokenRejectedBeforeHandler(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AnyAuthenticated, h)

	rr := doRequest(t, wrapped, "", "acme.loomos.com")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body["code"] != string(CodeUnauthenticated) {
		t.Fatalf("unexpected code: %v", body["code"])
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AnyAuthenticated, h)

	rr := doRequest(t, wrapped, "garbage", "acme.loomos.com")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
}

// Residents on an admin route get 403 FORBIDDEN.
func TestResidentForbiddenOnAdminRoute(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AdminOrAbove, h)

	rr := doRequest(t, wrapped, "resident-token", "acme.loomos.com")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body["code"] != string(CodeForbidden) {
		t.Fatalf("unexpected code: %v", body["code"])
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
}

// Scenario E: board member is still below admin-or-above.
func TestBoardMemberForbiddenOnAdminRoute(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AdminOrAbove, h)

	rr := doRequest(t, wrapped, "board-token", "acme.loomos.com")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
}

func TestAdminAllowedOnAdminRoute(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AdminOrAbove, h)

	if rr := doRequest(t, wrapped, "admin-token", "acme.loomos.com"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

// Scenario B: suspended tenant rejects admins with TENANT_SUSPENDED.
func TestSuspendedTenantRejectsNonSuperAdmin(t *testing.T) {
	p, _ := newTestPipeline(t, true)
	h := &countingHandler{}
	wrapped := p.Wrap(AdminOrAbove, h)

	rr := doRequest(t, wrapped, "admin-token", "acme.loomos.com")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body["code"] != string(CodeTenantSuspended) {
		t.Fatalf("unexpected code: %v", body["code"])
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
}

// Break-glass: SUPER_ADMIN passes every requirement and suspension state.
func TestSuperAdminBypassesSuspensionAndRoleChecks(t *testing.T) {
	p, _ := newTestPipeline(t, true)

	for _, req := range []Requirement{AnyAuthenticated, AdminOrAbove, SuperAdminOnly} {
		h := &countingHandler{}
		wrapped := p.Wrap(req, h)
		rr := doRequest(t, wrapped, "super-token", "acme.loomos.com")
		if rr.Code != http.StatusOK {
			t.Fatalf("requirement %+v: expected 200, got %d (%s)", req, rr.Code, rr.Body.String())
		}
		if h.calls != 1 {
			t.Fatalf("requirement %+v: expected handler call", req)
		}
	}
}

// Scenario D: platform route with no tenant; super admin runs with org unset.
func TestSuperAdminPlatformRouteWithoutTenant(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(SuperAdminOnly, h)

	rr := doRequest(t, wrapped, "super-token", "loomos.com")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if h.hasOrg {
		t.Fatalf("expected no organization in context, got %+v", h.org)
	}
	if h.identity.Role != auth.RoleSuperAdmin {
		t.Fatalf("unexpected identity: %+v", h.identity)
	}
}

func TestAdminForbiddenOnSuperAdminRoute(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(SuperAdminOnly, h)

	rr := doRequest(t, wrapped, "admin-token", "acme.loomos.com")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
}

func TestUnknownTenantRejected(t *testing.T) {
	p, sessions := newTestPipeline(t, false)
	sessions.sessions["orphan-token"] = session(auth.RoleResident, "")

	h := &countingHandler{}
	wrapped := p.Wrap(AnyAuthenticated, h)
	rr := doRequest(t, wrapped, "orphan-token", "unknown.loomos.com")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body["code"] != string(CodeTenantNotFound) {
		t.Fatalf("unexpected code: %v", body["code"])
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, got %d calls", h.calls)
	}
}

func TestTokenFromSessionCookie(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AnyAuthenticated, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/test", nil)
	req.Host = "acme.loomos.com"
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "resident-token"})
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

// Same request twice with no state change yields the same outcome.
func TestGatewayIdempotent(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	h := &countingHandler{}
	wrapped := p.Wrap(AdminOrAbove, h)

	first := doRequest(t, wrapped, "board-token", "acme.loomos.com")
	second := doRequest(t, wrapped, "board-token", "acme.loomos.com")
	if first.Code != second.Code {
		t.Fatalf("outcomes differ: %d vs %d", first.Code, second.Code)
	}
	if decodeErrorBody(t, first)["code"] != decodeErrorBody(t, second)["code"] {
		t.Fatal("error codes differ between identical requests")
	}
}

func TestPanicBecomesGenericInternalError(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	wrapped := p.WrapFunc(AnyAuthenticated, func(http.ResponseWriter, *http.Request) {
		panic("secret database dsn leaked")
	})

	rr := doRequest(t, wrapped, "resident-token", "acme.loomos.com")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body["code"] != string(CodeInternal) {
		t.Fatalf("unexpected code: %v", body["code"])
	}
	if got := body["error"]; got != "internal error" {
		t.Fatalf("internal detail leaked into response: %v", got)
	}
}

func TestRejectionStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthenticated: http.StatusUnauthorized,
		CodeForbidden:       http.StatusForbidden,
		CodeTenantNotFound:  http.StatusNotFound,
		CodeTenantSuspended: http.StatusForbidden,
		CodeValidation:      http.StatusBadRequest,
		CodeDuplicateEntry:  http.StatusBadRequest,
		CodeInternal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.Status(); got != want {
			t.Fatalf("%s.Status()=%d, want %d", code, got, want)
		}
	}
}
