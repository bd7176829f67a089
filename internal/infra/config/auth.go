package config

// AuthConfig controls where the tenancy middleware looks for a parish id.
// An empty JWTSecret disables claim extraction.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	TenantClaim string `mapstructure:"tenant_claim" validate:"required"`
	RouteParam  string `mapstructure:"route_param"  validate:"required"`
}
