package config

import "time"

// RegistryConfig describes where tenant entries are stored.
type RegistryConfig struct {
	Type                string               `mapstructure:"type"                  validate:"required,oneof=postgres memory"`
	URL                 string               `mapstructure:"url"                   validate:"required_if=Type postgres"`
	QueryTimeout        time.Duration        `mapstructure:"query_timeout"`
	HealthCheckInterval time.Duration        `mapstructure:"health_check_interval"`
	Connection          DBConnectionConfig   `mapstructure:"connection"`
	TLS                 TLSConfig            `mapstructure:"tls"`
	CircuitBreaker      CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig holds settings for the registry circuit breaker.
type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures"  validate:"required_if=Enabled true,omitempty,gt=0"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// DBConnectionConfig represents the database connection pool configuration.
type DBConnectionConfig struct {
	MaxConns          int32         `mapstructure:"max_conns"           validate:"gte=0"`
	MinConns          int32         `mapstructure:"min_conns"           validate:"gte=0"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// TLSConfig represents the database TLS configuration.
type TLSConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AdminConfig points at the tenant database server with a role allowed to
// create databases and logins.
type AdminConfig struct {
	URL         string `mapstructure:"url"`
	MaxAttempts int    `mapstructure:"max_attempts" validate:"gte=0"`
}

// TenantServerConfig is the address written into every new descriptor.
type TenantServerConfig struct {
	Host    string `mapstructure:"host"     validate:"required,hostname_rfc1123|ip"`
	Port    int    `mapstructure:"port"     validate:"required,gte=1,lte=65535"`
	SSLMode string `mapstructure:"ssl_mode" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`
}
