package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/handler"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/cache"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/statestore"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jwtSecret = "handler-test-secret-handler-test-secret"

// --- Stubs ---

type stubUsers struct {
	users map[string]domain.UserProfile
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*domain.UserProfile, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *stubUsers) ListUsers(context.Context, int, int) ([]domain.UserProfile, int, error) {
	out := make([]domain.UserProfile, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (s *stubUsers) CreateUser(_ context.Context, u *domain.UserProfile) (*domain.UserProfile, error) {
	return u, nil
}

func (s *stubUsers) UpdateUser(context.Context, string, map[string]any) (*domain.UserProfile, error) {
	return nil, errors.New("not implemented")
}

type stubTenants struct {
	tenants []domain.Tenant
	created *domain.Tenant
}

func (s *stubTenants) ListTenants(_ context.Context, f domain.TenantFilter) ([]domain.Tenant, int, error) {
	var out []domain.Tenant
	for _, t := range s.tenants {
		if f.PartnerID == "" || t.PartnerID == f.PartnerID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (s *stubTenants) GetTenant(_ context.Context, id string) (*domain.Tenant, error) {
	for _, t := range s.tenants {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *stubTenants) GetTenantByCNPJ(context.Context, string) (*domain.Tenant, error) {
	return nil, nil
}

func (s *stubTenants) CreateTenant(_ context.Context, t *domain.Tenant) (*domain.Tenant, error) {
	cp := *t
	cp.ID = "new-tenant"
	s.created = &cp
	return &cp, nil
}

func (s *stubTenants) UpdateTenant(context.Context, string, map[string]any) (*domain.Tenant, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTenants) SoftDeleteTenant(context.Context, string, time.Time) error { return nil }

func (s *stubTenants) SetConnectionFlag(context.Context, string, domain.Platform, bool) error {
	return nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// --- Fixtures ---

var (
	admin    = domain.UserProfile{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin, Active: true}
	partner  = domain.UserProfile{ID: "partner-a", Name: "Parceiro A", Role: domain.RolePartner, Active: true}
	disabled = domain.UserProfile{ID: "partner-x", Name: "Parceiro X", Role: domain.RolePartner, Active: false}
)

type testEnv struct {
	router  http.Handler
	tenants *stubTenants
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, checks ...handler.HealthCheck) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	profileCache := cache.New[*domain.UserProfile](time.Minute)
	t.Cleanup(profileCache.Close)
	states := statestore.NewMemory(time.Minute)
	t.Cleanup(func() { _ = states.Close() })

	users := service.NewUserService(&stubUsers{users: map[string]domain.UserProfile{
		admin.ID: admin, partner.ID: partner, disabled.ID: disabled,
	}}, profileCache, metrics, logger)
	tenants := &stubTenants{tenants: []domain.Tenant{
		{ID: "t-a", PartnerID: "partner-a", Name: "Loja A", CNPJ: "11222333000181", Status: domain.TenantActive},
		{ID: "t-b", PartnerID: "partner-b", Name: "Loja B", CNPJ: "11444777000161", Status: domain.TenantActive},
	}}

	svcs := handler.Services{
		Auth:    service.NewAuthService(nil, users, jwtSecret, "http://app", logger),
		Users:   users,
		Tenants: service.NewTenantService(tenants, nil, nil, logger),
		OAuth: service.NewOAuthService(service.OAuthConfig{FrontendURL: "http://app", StateTTL: time.Minute},
			tenants, nil, users, states, nil, nil, metrics, logger),
	}
	opts := handler.Options{
		CORSAllowedOrigins: []string{"http://app"},
		HealthChecks:       checks,
	}
	return &testEnv{router: handler.NewRouter(svcs, opts, metrics, logger), tenants: tenants, metrics: metrics}
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, service.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func (e *testEnv) do(method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, handler.Options{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_DegradedDependency(t *testing.T) {
	env := newTestEnv(t,
		handler.HealthCheck{Name: "supabase", Pinger: stubPinger{}},
		handler.HealthCheck{Name: "oauth-state", Pinger: stubPinger{err: errors.New("connection refused")}},
	)

	rec := env.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health domain.HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status)
	require.Len(t, health.Services, 3)
	assert.Equal(t, "healthy", health.Services[1].Status)
	assert.Equal(t, "degraded", health.Services[2].Status)
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, handler.Options{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrOAuthExchange("success")
	router := handler.NewRouter(handler.Services{}, handler.Options{}, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bfa_oauth_exchanges_total")
}

func TestConsoleMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.metrics.RecordSimulation(3, 1)

	rec := env.do(http.MethodGet, "/v1/metrics/console", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.ConsoleMetrics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, int64(1), snap.Simulations)
	assert.InDelta(t, 0.75, snap.MatchRate, 0.001)
	assert.Nil(t, snap.LastTokenRefresh)

	env.metrics.RecordRefreshSweep(&domain.RefreshReport{Checked: 4, Refreshed: 3, Failed: 1})
	rec = env.do(http.MethodGet, "/v1/metrics/console", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	snap = domain.ConsoleMetrics{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.NotNil(t, snap.LastTokenRefresh)
	assert.Equal(t, 4, snap.LastTokenRefresh.Checked)
	assert.NotNil(t, snap.LastTokenRefresh.FinishedAt)
}

func TestAuthRoutesUnavailableWithoutSupabase(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, handler.Options{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signin", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tenants", nil)
	req.Header.Set("Origin", "http://app")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://app", rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- Authentication ---

func TestJWTMiddleware(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"unknown profile", bearer(t, "ghost"), http.StatusForbidden},
		{"deactivated user", bearer(t, "partner-x"), http.StatusForbidden},
		{"valid", bearer(t, "partner-a"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/v1/me", tt.auth, "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/me", bearer(t, "partner-a"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me domain.UserProfile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "partner-a", me.ID)
	assert.Equal(t, domain.RolePartner, me.Role)
}

func TestUsersList_AdminOnly(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/v1/users", bearer(t, "partner-a"), "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/v1/users", bearer(t, "admin-1"), "").Code)
}

// --- Tenants ---

func TestListTenants_PartnerScope(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/tenants?page=1&page_size=10", bearer(t, "partner-a"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.ListResponse[domain.Tenant]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "t-a", resp.Data[0].ID)
	assert.Equal(t, 10, resp.PageSize)
}

func TestGetTenant_OtherPartnerIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/tenants/t-b", bearer(t, "partner-a"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTenant(t *testing.T) {
	env := newTestEnv(t)

	t.Run("created", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/tenants", bearer(t, "partner-a"),
			`{"name":"Loja Nova","cnpj":"45.723.174/0001-10","plan":"PRO"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NotNil(t, env.tenants.created)
		assert.Equal(t, "partner-a", env.tenants.created.PartnerID)
		assert.Equal(t, "45723174000110", env.tenants.created.CNPJ)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/tenants", bearer(t, "partner-a"), `{"cnpj":"45723174000110"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "name", body["field"])
	})

	t.Run("invalid cnpj", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/tenants", bearer(t, "partner-a"),
			`{"name":"Loja","cnpj":"12.345.678/0001-00"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/tenants", bearer(t, "partner-a"), `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- OAuth callback ---

func TestOAuthCallback_RedirectsWithErrorCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/oauth/contaazul/callback?error=access_denied", "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://app/oauth/callback/result?error=provider_error", rec.Header().Get("Location"))

	rec = env.do(http.MethodGet, "/v1/oauth/contaazul/callback?code=abc", "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://app/oauth/callback/result?error=missing_params", rec.Header().Get("Location"))
}

func TestOAuthCallback_ForwardedURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/oauth/contaazul/callback", "",
		`{"url":"http://app/oauth/callback#code=abc&state=bm90LWpzb24"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var result domain.CallbackResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.False(t, result.Success)
	assert.Equal(t, domain.OAuthErrInvalidState, result.ErrorCode)
}
