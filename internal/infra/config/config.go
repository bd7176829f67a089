package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	customvalidator "github.com/spounge-ai/parishvault/pkg/validator"
)

const envPrefix = "PARISHVAULT"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Registry     RegistryConfig     `mapstructure:"registry"      validate:"required"`
	Admin        AdminConfig        `mapstructure:"admin"`
	TenantServer TenantServerConfig `mapstructure:"tenant_server"`
	Crypto       CryptoConfig       `mapstructure:"crypto"        validate:"required"`
	AWS          AWSConfig          `mapstructure:"aws"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Auth         AuthConfig         `mapstructure:"auth"`

	ServiceVersion string
	BuildCommit    string
}

// Load reads configuration from path (or ./configs/config.yaml, ./config.yaml
// when path is empty), overlays PARISHVAULT_* environment variables and
// validates the result.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(envPrefix)
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := customvalidator.RegisterCustomValidators(validate); err != nil {
		return nil, fmt.Errorf("failed to register custom validators: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.ServiceVersion = getenv(envPrefix+"_SERVICE_VERSION", "unknown")
	cfg.BuildCommit = getenv(envPrefix+"_BUILD_COMMIT", "unknown")

	return &cfg, nil
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", 8080)
	vip.SetDefault("server.mode", "development")
	vip.SetDefault("server.shutdown_timeout", 15*time.Second)
	vip.SetDefault("server.admin_rate_limit", 1.0)
	vip.SetDefault("server.admin_burst", 5)

	vip.SetDefault("registry.type", "postgres")
	vip.SetDefault("registry.url", "")
	vip.SetDefault("registry.query_timeout", 3*time.Second)
	vip.SetDefault("registry.health_check_interval", 30*time.Second)
	vip.SetDefault("registry.connection.max_conns", 10)
	vip.SetDefault("registry.connection.min_conns", 1)
	vip.SetDefault("registry.connection.max_conn_lifetime", time.Hour)
	vip.SetDefault("registry.connection.max_conn_idle_time", 30*time.Minute)
	vip.SetDefault("registry.connection.health_check_period", time.Minute)
	vip.SetDefault("registry.circuit_breaker.enabled", true)
	vip.SetDefault("registry.circuit_breaker.max_failures", 5)
	vip.SetDefault("registry.circuit_breaker.reset_timeout", 30*time.Second)

	vip.SetDefault("admin.url", "")
	vip.SetDefault("admin.max_attempts", 3)

	vip.SetDefault("tenant_server.host", "localhost")
	vip.SetDefault("tenant_server.port", 5432)
	vip.SetDefault("tenant_server.ssl_mode", "require")

	vip.SetDefault("crypto.current_version", 1)

	vip.SetDefault("aws.enabled", false)
	vip.SetDefault("aws.snapshot_prefix", "registry-snapshots/")

	vip.SetDefault("provisioning.default_roles", []string{"pg_read_all_data", "pg_write_all_data"})
	vip.SetDefault("provisioning.seed_example_data", false)
	vip.SetDefault("provisioning.create_admin", false)
	vip.SetDefault("provisioning.tenant_timeout", 2*time.Minute)
	vip.SetDefault("provisioning.pool_ttl", 10*time.Minute)
	vip.SetDefault("provisioning.tenant_pool_max_conns", 4)

	vip.SetDefault("auth.jwt_secret", "")
	vip.SetDefault("auth.tenant_claim", "parish_id")
	vip.SetDefault("auth.route_param", "parishID")
}

// SecretRefs returns the fields that may hold an ssm: reference, so they can
// be resolved in place before use.
func (c *Config) SecretRefs() []*string {
	refs := []*string{
		&c.Registry.URL,
		&c.Admin.URL,
		&c.Auth.JWTSecret,
		&c.Provisioning.AdminPassword,
	}
	for i := range c.Crypto.Keys {
		refs = append(refs, &c.Crypto.Keys[i].Material)
	}
	return refs
}

// getenv returns an environment variable or a default value.
func getenv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
