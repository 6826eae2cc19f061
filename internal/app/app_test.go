package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fieldops/internal/auth"
	"github.com/odyssey-erp/fieldops/internal/delivery"
	"github.com/odyssey-erp/fieldops/internal/localcache"
	"github.com/odyssey-erp/fieldops/internal/observability"
	"github.com/odyssey-erp/fieldops/internal/pin"
	"github.com/odyssey-erp/fieldops/internal/rbac"
	"github.com/odyssey-erp/fieldops/internal/shared"
	"github.com/odyssey-erp/fieldops/jobs"
	_ "github.com/odyssey-erp/fieldops/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "sha256", cfg.PinHashScheme)
	assert.Equal(t, 100.0, cfg.GeofenceRadiusMeters)
	assert.Equal(t, 72*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 15*time.Second, cfg.NetworkProbeInterval)
	assert.EqualValues(t, 3, cfg.BreakerFailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
	assert.Equal(t, 5, cfg.ItemResyncMaxRetry)
	assert.Equal(t, 7, cfg.HistoryDefaultDays)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	t.Run("pin scheme", func(t *testing.T) {
		t.Setenv("PIN_HASH_SCHEME", "md5")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("history window", func(t *testing.T) {
		t.Setenv("HISTORY_DEFAULT_DAYS", "0")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("empty secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

type userRepo struct {
	users map[string]*auth.User
}

func (r *userRepo) FindActiveBySalesmanID(_ context.Context, salesmanID string) (*auth.User, error) {
	for _, u := range r.users {
		if u.SalesmanID == salesmanID && u.IsActive {
			return u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (r *userRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func (r *userRepo) Create(context.Context, auth.NewUser) (*auth.User, error) {
	return nil, auth.ErrDuplicateSalesman
}

type fakeHealth struct {
	connected bool
	state     string
}

func (f fakeHealth) IsConnected() bool { return f.connected }
func (f fakeHealth) State() string     { return f.state }

type routerFixture struct {
	handler http.Handler
}

func newRouterFixture(t *testing.T, health HealthSource) *routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}
	sessions := shared.NewSessionManager(client, "fieldops_session", "secret", time.Hour, false)
	hasher, err := pin.NewHasher("sha256")
	require.NoError(t, err)

	repo := &userRepo{users: map[string]*auth.User{
		"u1": {ID: "u1", SalesmanID: "DL-01", SalesmanName: "Courier", PinHash: pin.HashPin("4321"), Role: auth.RoleDelivery, IsActive: true},
		"u2": {ID: "u2", SalesmanID: "SM-01", SalesmanName: "Booker", Role: auth.RoleSalesman, IsActive: true},
	}}
	registry := delivery.NewRegistry(func(identity delivery.Identity) *delivery.Manager {
		return delivery.NewManager(identity, delivery.Config{})
	})
	authSvc := auth.NewService(repo, hasher, localcache.NewMemoryStore(nil), registry, nil)
	rbacMW := rbac.Middleware{}

	handler := NewRouter(RouterParams{
		Config:          cfg,
		SessionManager:  sessions,
		AuthHandler:     auth.NewHandler(nil, authSvc, sessions),
		DeliveryHandler: delivery.NewHandler(nil, registry, nil, delivery.HandlerConfig{}),
		JobHandler:      jobs.NewHandler(nil, nil),
		RBACMiddleware:  rbacMW,
		Health:          health,
		Metrics:         observability.NewMetrics(),
	})
	return &routerFixture{handler: handler}
}

func (f *routerFixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:5000"
	if token != "" {
		req.Header.Set(shared.SessionHeader, token)
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func (f *routerFixture) login(t *testing.T, salesmanID, pinCode string) string {
	t.Helper()
	res := f.do(t, http.MethodPost, "/auth/login", `{"salesmanId":"`+salesmanID+`","pin":"`+pinCode+`"}`, "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	token := res.Header().Get(shared.SessionHeader)
	require.NotEmpty(t, token)
	return token
}

func TestHealthzReportsBreakerState(t *testing.T) {
	f := newRouterFixture(t, fakeHealth{connected: false, state: "open"})
	res := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, res.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Connected)
	assert.Equal(t, "open", body.Breaker)

	f = newRouterFixture(t, nil)
	res = f.do(t, http.MethodGet, "/healthz", "", "")
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestSessionFlowThroughRouter(t *testing.T) {
	f := newRouterFixture(t, nil)

	res := f.do(t, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	token := f.login(t, "DL-01", "4321")
	res = f.do(t, http.MethodGet, "/auth/me", "", token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"salesmanId":"DL-01"`)

	res = f.do(t, http.MethodPost, "/auth/logout", "", token)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = f.do(t, http.MethodGet, "/auth/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRoleGates(t *testing.T) {
	f := newRouterFixture(t, nil)

	res := f.do(t, http.MethodGet, "/delivery/state", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	booker := f.login(t, "SM-01", "0000")
	res = f.do(t, http.MethodGet, "/delivery/state", "", booker)
	assert.Equal(t, http.StatusForbidden, res.Code)

	courier := f.login(t, "DL-01", "4321")
	res = f.do(t, http.MethodGet, "/jobs/health", "", courier)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.do(t, http.MethodGet, "/healthz", "", "")

	res := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `fieldops_http_requests_total{code="200",route="/healthz"}`)
}

func TestSecureHeaders(t *testing.T) {
	f := newRouterFixture(t, nil)
	res := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
}
