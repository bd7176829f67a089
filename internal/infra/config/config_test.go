package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  port: 8443
  mode: production
registry:
  type: postgres
  url: postgres://registry:secret@db:5432/registry
crypto:
  current_version: 2
  keys:
    - version: 1
      material: MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=
    - version: 2
      material: ssm:/parishvault/keys/2
provisioning:
  default_roles: [pg_read_all_data]
  tenant_timeout: 45s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 8443, cfg.Server.Port)
	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, 2, cfg.Crypto.CurrentVersion)
	assert.Len(t, cfg.Crypto.Keys, 2)
	assert.Equal(t, []string{"pg_read_all_data"}, cfg.Provisioning.DefaultRoles)
	assert.Equal(t, 45*time.Second, cfg.Provisioning.TenantTimeout)

	// defaults
	assert.Equal(t, "parish_id", cfg.Auth.TenantClaim)
	assert.Equal(t, "parishID", cfg.Auth.RouteParam)
	assert.Equal(t, "require", cfg.TenantServer.SSLMode)
	assert.Equal(t, 5, cfg.Registry.CircuitBreaker.MaxFailures)
	assert.Equal(t, int32(4), cfg.Provisioning.PoolMaxConns)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PARISHVAULT_SERVER_PORT", "9090")
	t.Setenv("PARISHVAULT_AUTH_TENANT_CLAIM", "tenant")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "tenant", cfg.Auth.TenantClaim)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no keys", `
registry: {type: memory}
crypto: {current_version: 1}
`},
		{"bad role", `
registry: {type: memory}
crypto:
  current_version: 1
  keys: [{version: 1, material: abc}]
provisioning:
  default_roles: ["Robert'); DROP"]
`},
		{"postgres without url", `
registry: {type: postgres}
crypto:
  current_version: 1
  keys: [{version: 1, material: abc}]
`},
		{"negative tenant pool size", `
registry: {type: memory}
crypto:
  current_version: 1
  keys: [{version: 1, material: abc}]
provisioning:
  tenant_pool_max_conns: -1
`},
		{"admin without password", `
registry: {type: memory}
crypto:
  current_version: 1
  keys: [{version: 1, material: abc}]
provisioning:
  create_admin: true
  admin_email: admin@example.org
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, "config validation failed")
		})
	}
}

func TestSecretRefs(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	refs := cfg.SecretRefs()
	assert.Len(t, refs, 6)

	*refs[len(refs)-1] = "resolved"
	assert.Equal(t, "resolved", cfg.Crypto.Keys[1].Material)
}
