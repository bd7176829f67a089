package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spounge-ai/parishvault/internal/domain"
	"github.com/spounge-ai/parishvault/internal/infra/audit"
	infra_config "github.com/spounge-ai/parishvault/internal/infra/config"
	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	"github.com/spounge-ai/parishvault/internal/infra/postgres"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/internal/metrics"
	"github.com/spounge-ai/parishvault/internal/pipelines"
	"github.com/spounge-ai/parishvault/internal/provisioning"
	"github.com/spounge-ai/parishvault/internal/tenancy"
)

// ErrNoAdmin is returned by operations that need the tenant server admin
// connection when admin.url is not configured.
var ErrNoAdmin = errors.New("admin.url is not configured")

// Dependencies is everything the binaries need, built once from config.
type Dependencies struct {
	Cipher     *kms.Cipher
	Registry   domain.TenantRegistry
	Audit      domain.AuditLogger
	Metrics    *metrics.Metrics
	Prometheus *prometheus.Registry

	// RegistryPool and Monitor are nil for the in-memory registry.
	RegistryPool *pgxpool.Pool
	Monitor      *persistence.ConnectionMonitor

	// Provisioning is nil without an admin connection.
	Provisioning *provisioning.Service
	Rotation     *pipelines.KeyRotationJob
	Resolver     *tenancy.RequestResolver
	DataSource   *tenancy.DataSource
}

// Container builds Dependencies lazily and owns the pools it opened.
type Container struct {
	cfg    *infra_config.Config
	logger *slog.Logger

	mu      sync.Mutex
	deps    *Dependencies
	closers []func()
}

func NewContainer(cfg *infra_config.Config, logger *slog.Logger) *Container {
	return &Container{cfg: cfg, logger: logger}
}

func (c *Container) Config() *infra_config.Config {
	return c.cfg
}

// GetDependencies builds the dependency graph on first call and returns the
// same graph afterwards.
func (c *Container) GetDependencies(ctx context.Context) (*Dependencies, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deps != nil {
		return c.deps, nil
	}

	deps, err := c.build(ctx)
	if err != nil {
		c.closeLocked()
		return nil, err
	}
	c.deps = deps
	return deps, nil
}

// Provisioning returns the provisioning service or ErrNoAdmin.
func (c *Container) Provisioning(ctx context.Context) (*provisioning.Service, error) {
	deps, err := c.GetDependencies(ctx)
	if err != nil {
		return nil, err
	}
	if deps.Provisioning == nil {
		return nil, ErrNoAdmin
	}
	return deps.Provisioning, nil
}

func (c *Container) build(ctx context.Context) (*Dependencies, error) {
	cfg, logger := c.cfg, c.logger

	awsCfg, err := provideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := expandSecrets(ctx, cfg, awsCfg); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	cipher, err := provideCipher(ctx, cfg, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	registryPool, err := provideRegistryPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to registry: %w", err)
	}
	var monitor *persistence.ConnectionMonitor
	if registryPool != nil {
		c.closers = append(c.closers, registryPool.Close)
		monitor = persistence.NewConnectionMonitor(registryPool, persistence.LogAlerter{Logger: logger}, m.SetRegistryHealthy)
	}
	registry := provideRegistry(cfg, registryPool, m, logger)

	auditLogger := audit.NewAuditLogger(logger)

	var snapshotter pipelines.RegistrySnapshotter
	if s := provideSnapshotter(cfg, awsCfg, logger); s != nil {
		snapshotter = s
	}

	deps := &Dependencies{
		Cipher:       cipher,
		Registry:     registry,
		Audit:        auditLogger,
		Metrics:      m,
		Prometheus:   promReg,
		RegistryPool: registryPool,
		Monitor:      monitor,
		Rotation:     pipelines.NewKeyRotationJob(cipher, registry, snapshotter, auditLogger, m, logger),
		Resolver:     tenancy.NewRequestResolver(registry, cipher, m, logger),
	}

	deps.DataSource = tenancy.NewDataSource(tenancy.NewTenantPool(cfg.Provisioning.PoolMaxConns),
		cfg.Provisioning.PoolTTL, m, logger)
	c.closers = append(c.closers, deps.DataSource.Close)

	adminPool, err := provideAdminPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if adminPool == nil {
		logger.Info("admin.url not set; tenant provisioning is disabled")
		return deps, nil
	}
	c.closers = append(c.closers, adminPool.Close)

	deps.Provisioning, err = provisioning.NewService(provisioning.Dependencies{
		Cipher:   cipher,
		Registry: registry,
		Admin:    postgres.NewAdmin(adminPool, logger, cfg.Admin.MaxAttempts),
		Migrator: postgres.NewSchemaMigrator(logger),
		Seeder:   postgres.NewSeeder(logger),
		Audit:    auditLogger,
		Metrics:  m,
		Logger:   logger,
	}, provisioningConfig(cfg))
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func provisioningConfig(cfg *infra_config.Config) provisioning.Config {
	p := cfg.Provisioning
	out := provisioning.Config{
		TenantHost:      cfg.TenantServer.Host,
		TenantPort:      cfg.TenantServer.Port,
		SSLMode:         cfg.TenantServer.SSLMode,
		DefaultRoles:    p.DefaultRoles,
		SeedExampleData: p.SeedExampleData,
		TenantTimeout:   p.TenantTimeout,
	}
	if p.CreateAdmin {
		out.DefaultAdmin = &domain.AdminPrincipal{
			Email:       p.AdminEmail,
			DisplayName: "Administrator",
			Password:    p.AdminPassword,
		}
	}
	return out
}

// Close releases every pool in reverse order of creation.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.deps = nil
	return nil
}

func (c *Container) closeLocked() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
