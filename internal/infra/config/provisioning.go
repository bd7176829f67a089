package config

import "time"

// ProvisioningConfig drives tenant creation and the per-tenant data source.
// PoolMaxConns caps each cached tenant pool; 0 keeps the pgxpool default.
type ProvisioningConfig struct {
	DefaultRoles    []string      `mapstructure:"default_roles"         validate:"dive,pgident"`
	SeedExampleData bool          `mapstructure:"seed_example_data"`
	CreateAdmin     bool          `mapstructure:"create_admin"`
	AdminEmail      string        `mapstructure:"admin_email"           validate:"required_if=CreateAdmin true,omitempty,email"`
	AdminPassword   string        `mapstructure:"admin_password"        validate:"required_if=CreateAdmin true"`
	TenantTimeout   time.Duration `mapstructure:"tenant_timeout"`
	PoolTTL         time.Duration `mapstructure:"pool_ttl"`
	PoolMaxConns    int32         `mapstructure:"tenant_pool_max_conns" validate:"gte=0"`
}
