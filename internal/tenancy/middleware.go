package tenancy

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type MiddlewareConfig struct {
	RouteParam  string
	TenantClaim string
	// JWTSecret verifies HS256 bearer tokens. Empty disables claim lookup.
	JWTSecret []byte
}

// Middleware resolves the tenant for each request and stores it on the
// request context. The context is closed once the handler returns. An
// invalid tenant is passed through for handlers to interpret.
func Middleware(resolver Resolver, cfg MiddlewareConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			src := Source{
				RouteTenantID: routeParam(r, cfg.RouteParam),
				ClaimTenantID: claimFromRequest(r, cfg, logger),
			}

			tc := resolver.Resolve(r.Context(), src)
			defer tc.Close()

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
		})
	}
}

func routeParam(r *http.Request, name string) string {
	if name == "" || chi.RouteContext(r.Context()) == nil {
		return ""
	}
	return chi.URLParam(r, name)
}

func claimFromRequest(r *http.Request, cfg MiddlewareConfig, logger *slog.Logger) string {
	if len(cfg.JWTSecret) == 0 || cfg.TenantClaim == "" {
		return ""
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return ""
	}

	claim, err := TenantClaim(raw, cfg.TenantClaim, cfg.JWTSecret)
	if err != nil {
		logger.DebugContext(r.Context(), "ignoring bearer token", "error", err)
		return ""
	}
	return claim
}

// TenantClaim verifies an HS256 token and returns the named string claim.
func TenantClaim(token, claim string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	v, ok := claims[claim].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("token has no %q claim", claim)
	}
	return v, nil
}
