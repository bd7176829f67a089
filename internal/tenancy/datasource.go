package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/internal/metrics"
	"github.com/spounge-ai/parishvault/pkg/cache"
)

// PoolFactory opens a pool for one tenant database.
type PoolFactory func(ctx context.Context, d *domain.ConnectionDescriptor) (*pgxpool.Pool, error)

// DataSource hands the data-access layer a pool for the tenant on the
// current context. Pools are cached per tenant login. A pool is closed only
// after it has gone unused for the whole TTL.
type DataSource struct {
	pools   cache.Store[string, *pgxpool.Pool]
	newPool PoolFactory
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDataSource(newPool PoolFactory, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *DataSource {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	pools := cache.New[string, *pgxpool.Pool](
		cache.WithDefaultTTL[string, *pgxpool.Pool](ttl),
		cache.WithCleanupInterval[string, *pgxpool.Pool](ttl/2),
		cache.WithSlidingTTL[string, *pgxpool.Pool](),
		cache.WithEvictionCallback[string, *pgxpool.Pool](func(key string, p *pgxpool.Pool) {
			m.AddTenantPools(-1)
			logger.Debug("tenant pool evicted", "pool", key)
			// Close waits for acquired connections
			go p.Close()
		}),
	)
	return &DataSource{pools: pools, newPool: newPool, metrics: m, logger: logger}
}

// Pool returns the pool for the tenant resolved on ctx. Without a resolved
// tenant or an override descriptor it returns ErrNoTenant.
func (ds *DataSource) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	tc, _ := FromContext(ctx)
	d := tc.ConnectionDescriptor()
	if d == nil {
		ds.logger.ErrorContext(ctx, "data access without a tenant",
			"state", tc.State().String(), "requested_id", tc.RequestedID())
		return nil, fmt.Errorf("%w: tenant state %s", app_errors.ErrNoTenant, tc.State())
	}

	return ds.pools.GetOrCreate(ctx, poolKey(d), func() (*pgxpool.Pool, error) {
		p, err := ds.newPool(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("failed to open pool for %s: %w", d.Database, err)
		}
		ds.metrics.AddTenantPools(1)
		return p, nil
	})
}

// Close closes every cached pool.
func (ds *DataSource) Close() {
	ds.pools.Clear(context.Background())
	ds.pools.Stop()
}

func poolKey(d *domain.ConnectionDescriptor) string {
	return d.User + "@" + net.JoinHostPort(d.Host, strconv.Itoa(d.Port)) + "/" + d.Database
}

// NewTenantPool is the default PoolFactory.
func NewTenantPool(maxConns int32) PoolFactory {
	return func(ctx context.Context, d *domain.ConnectionDescriptor) (*pgxpool.Pool, error) {
		cfg, err := pgxpool.ParseConfig(d.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to parse tenant descriptor: %w", err)
		}
		if maxConns > 0 {
			cfg.MaxConns = maxConns
		}
		return pgxpool.NewWithConfig(ctx, cfg)
	}
}
