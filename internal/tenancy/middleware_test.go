package tenancy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newRouter(f *fixture, seen **TenantContext, state *State) http.Handler {
	mw := Middleware(f.resolver, MiddlewareConfig{
		RouteParam:  "parishID",
		TenantClaim: "parish_id",
		JWTSecret:   testSecret,
	}, testutil.DiscardLogger())

	handler := func(w http.ResponseWriter, r *http.Request) {
		tc, _ := FromContext(r.Context())
		*seen = tc
		*state = tc.State()
		w.WriteHeader(http.StatusNoContent)
	}

	r := chi.NewRouter()
	r.With(mw).Get("/parishes/{parishID}/status", handler)
	r.With(mw).Get("/me", handler)
	return r
}

func TestMiddlewareResolvesRouteParam(t *testing.T) {
	f := newFixture(t)
	var seen *TenantContext
	var state State
	router := newRouter(f, &seen, &state)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parishes/"+f.entry.PublicID.String()+"/status", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, StateResolved, state)
	require.NotNil(t, seen)
	// closed after the handler returned
	assert.Equal(t, StateUnset, seen.State())
	assert.Nil(t, seen.ConnectionDescriptor())
}

func TestMiddlewareUnknownTenantReachesHandler(t *testing.T) {
	f := newFixture(t)
	var seen *TenantContext
	var state State
	router := newRouter(f, &seen, &state)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parishes/"+uuid.NewString()+"/status", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, StateInvalid, state)
}

func TestMiddlewareUsesBearerClaim(t *testing.T) {
	f := newFixture(t)
	var seen *TenantContext
	var state State
	router := newRouter(f, &seen, &state)

	token := signToken(t, jwt.MapClaims{
		"parish_id": f.entry.PublicID.String(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	}, jwt.SigningMethodHS256, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, StateResolved, state)
}

func TestMiddlewareIgnoresBadTokens(t *testing.T) {
	f := newFixture(t)
	var seen *TenantContext
	var state State
	router := newRouter(f, &seen, &state)

	tests := map[string]string{
		"wrong secret": signToken(t, jwt.MapClaims{"parish_id": f.entry.PublicID.String()}, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx")),
		"expired": signToken(t, jwt.MapClaims{
			"parish_id": f.entry.PublicID.String(),
			"exp":       time.Now().Add(-time.Hour).Unix(),
		}, jwt.SigningMethodHS256, testSecret),
		"no claim": signToken(t, jwt.MapClaims{"sub": "x"}, jwt.SigningMethodHS256, testSecret),
		"garbage":  "not.a.token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			router.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, StateUnset, state)
		})
	}
}

func TestTenantClaimRejectsOtherAlgorithms(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"parish_id": "x"}, jwt.SigningMethodHS512, testSecret)
	_, err := TenantClaim(token, "parish_id", testSecret)
	assert.Error(t, err)
}
