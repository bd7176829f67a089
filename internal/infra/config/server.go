package config

import "time"

// ServerConfig represents the HTTP server configuration. AdminRateLimit is
// requests per second per client on the admin routes; zero disables it.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gte=1024,lte=65535"`
	Mode            string        `mapstructure:"mode"             validate:"required,oneof=development production"`
	TLS             TLS           `mapstructure:"tls"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdminRateLimit  float64       `mapstructure:"admin_rate_limit" validate:"gte=0"`
	AdminBurst      int           `mapstructure:"admin_burst"      validate:"gte=0"`
}

// TLS represents the TLS configuration.
type TLS struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `mapstructure:"key_file"  validate:"required_if=Enabled true"`
}

func (s ServerConfig) IsProduction() bool {
	return s.Mode == "production"
}
