package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	"github.com/spounge-ai/parishvault/internal/infra/ratelimit"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/internal/metrics"
	"github.com/spounge-ai/parishvault/internal/provisioning"
	"github.com/spounge-ai/parishvault/internal/tenancy"
	"github.com/spounge-ai/parishvault/pkg/patterns/lifecycle"
	"github.com/spounge-ai/parishvault/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) CreateTenant(ctx context.Context, publicID uuid.UUID, name string, opts provisioning.CreateOptions) (*domain.TenantEntry, error) {
	args := m.Called(ctx, publicID, name, opts)
	entry, _ := args.Get(0).(*domain.TenantEntry)
	return entry, args.Error(1)
}

type failingPools struct {
	err error
}

func (f failingPools) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if tc, _ := tenancy.FromContext(ctx); tc.ConnectionDescriptor() == nil {
		return nil, app_errors.ErrNoTenant
	}
	return nil, f.err
}

type env struct {
	router   http.Handler
	creator  *mockCreator
	registry *persistence.InMemoryRegistry
	cipher   *kms.Cipher
	health   map[string]lifecycle.HealthStatus
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := testutil.DiscardLogger()
	e := &env{
		creator:  &mockCreator{},
		registry: persistence.NewInMemoryRegistry(),
		cipher:   testutil.Cipher(t, 1, testutil.KeyMaterial(t, 1)),
		health:   map[string]lifecycle.HealthStatus{"http-server": {Ready: true}},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	e.router = NewRouter(RouterDeps{
		Creator:  e.creator,
		Pools:    failingPools{err: errors.New("connection refused")},
		Resolver: tenancy.NewRequestResolver(e.registry, e.cipher, m, logger),
		Tenancy: tenancy.MiddlewareConfig{
			RouteParam:  "parishID",
			TenantClaim: "parish_id",
		},
		Health:     func(context.Context) map[string]lifecycle.HealthStatus { return e.health },
		Prometheus: reg,
		Classifier: app_errors.NewErrorClassifier(logger),
		Logger:     logger,
	})
	return e
}

func (e *env) do(method, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return rec
}

func (e *env) addTenant(t *testing.T) *domain.TenantEntry {
	t.Helper()
	ct, v, err := kms.SealDescriptor(e.cipher, &domain.ConnectionDescriptor{
		Host: "127.0.0.1", Port: 5432, Database: "parish_abc", User: "parish_u_abc", Password: "pw", SSLMode: "disable",
	})
	require.NoError(t, err)
	entry := &domain.TenantEntry{PublicID: uuid.New(), DisplayName: "St. Anne", EncryptedConnection: ct, KeyVersion: v}
	require.NoError(t, e.registry.Create(context.Background(), entry))
	return entry
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	e.health["registry-monitor"] = lifecycle.HealthStatus{Ready: false, Message: "registry unreachable"}
	rec = e.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodGet, "/parishes/"+uuid.NewString()+"/status", nil)

	rec := e.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parishvault_tenant_resolutions_total")
}

func TestCreateParish(t *testing.T) {
	e := newEnv(t)
	publicID := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	e.creator.On("CreateTenant", mock.Anything, publicID, "St. Joseph", mock.MatchedBy(func(o provisioning.CreateOptions) bool {
		return o.Admin != nil && o.Admin.Email == "priest@example.org" && o.SeedExampleData == nil
	})).Return(&domain.TenantEntry{ID: 7, PublicID: publicID, DisplayName: "St. Joseph", KeyVersion: 1, CreatedAt: created}, nil)

	body := fmt.Sprintf(`{"public_id":%q,"name":"St. Joseph","admin":{"email":"priest@example.org","password":"pw"}}`, publicID)
	rec := e.do(http.MethodPost, "/admin/parishes", []byte(body))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got parishResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, publicID, got.PublicID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.NotContains(t, rec.Body.String(), "encrypted")
	e.creator.AssertExpectations(t)
}

func TestCreateParishErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"name":"x","owner":"y"}`, status: http.StatusBadRequest},
		{name: "bad public id", body: `{"public_id":"nope","name":"x"}`, status: http.StatusBadRequest},
		{name: "duplicate", body: `{"name":"x"}`, err: fmt.Errorf("parish: %w", app_errors.ErrAlreadyExists), status: http.StatusConflict},
		{name: "registry down", body: `{"name":"x"}`, err: fmt.Errorf("%w: open", app_errors.ErrRegistryUnavailable), status: http.StatusServiceUnavailable},
		{name: "provisioning", body: `{"name":"x"}`, err: fmt.Errorf("%w: create database: boom", app_errors.ErrProvisioningFailure), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.err != nil {
				e.creator.On("CreateTenant", mock.Anything, mock.Anything, "x", mock.Anything).Return(nil, tt.err)
			}

			rec := e.do(http.MethodPost, "/admin/parishes", []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestParishStatus(t *testing.T) {
	e := newEnv(t)
	entry := e.addTenant(t)

	t.Run("unknown parish", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/parishes/"+uuid.NewString()+"/status", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unparsable id", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/parishes/abc/status", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("tenant database unreachable", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/parishes/"+entry.PublicID.String()+"/status", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestAdminRouteOmittedWithoutCreator(t *testing.T) {
	logger := testutil.DiscardLogger()
	router := NewRouter(RouterDeps{
		Pools:      failingPools{},
		Resolver:   tenancy.NewNoopResolver(nil),
		Tenancy:    tenancy.MiddlewareConfig{RouteParam: "parishID"},
		Classifier: app_errors.NewErrorClassifier(logger),
		Logger:     logger,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/parishes", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parishes/"+uuid.NewString()+"/status", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRouteRateLimited(t *testing.T) {
	logger := testutil.DiscardLogger()
	creator := &mockCreator{}
	creator.On("CreateTenant", mock.Anything, mock.Anything, "x", mock.Anything).
		Return(&domain.TenantEntry{ID: 1, PublicID: uuid.New(), DisplayName: "x", KeyVersion: 1}, nil)

	router := NewRouter(RouterDeps{
		Creator:      creator,
		AdminLimiter: ratelimit.NewInMemoryRateLimiter(rate.Every(time.Hour), 1, time.Minute),
		Pools:        failingPools{},
		Resolver:     tenancy.NewNoopResolver(nil),
		Tenancy:      tenancy.MiddlewareConfig{RouteParam: "parishID"},
		Classifier:   app_errors.NewErrorClassifier(logger),
		Logger:       logger,
	})

	post := func() int {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/parishes", bytes.NewReader([]byte(`{"name":"x"}`))))
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
	creator.AssertNumberOfCalls(t, "CreateTenant", 1)
}
