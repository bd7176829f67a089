package persistence

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spounge-ai/parishvault/internal/infra/config"
)

// NewSecureConnectionPool opens the registry pool. Production mode refuses
// to connect without TLS.
func NewSecureConnectionPool(ctx context.Context, registryConfig config.RegistryConfig, serverConfig config.ServerConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(registryConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	if serverConfig.IsProduction() && !registryConfig.TLS.Enabled {
		return nil, fmt.Errorf("database connection must use TLS in production mode")
	}

	if registryConfig.TLS.Enabled {
		poolConfig.ConnConfig.TLSConfig = &tls.Config{
			ServerName: poolConfig.ConnConfig.Host,
			MinVersion: tls.VersionTLS12,
		}
	}

	ApplyPoolSettings(poolConfig, registryConfig.Connection)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// ApplyPoolSettings copies non-zero pool sizing onto poolConfig.
func ApplyPoolSettings(poolConfig *pgxpool.Config, c config.DBConnectionConfig) {
	if c.MaxConns > 0 {
		poolConfig.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		poolConfig.MinConns = c.MinConns
	}
	if c.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = c.HealthCheckPeriod
	}
}
