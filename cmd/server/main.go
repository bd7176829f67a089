package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spounge-ai/parishvault/internal/app/rest"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	infra_config "github.com/spounge-ai/parishvault/internal/infra/config"
	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	"github.com/spounge-ai/parishvault/internal/infra/ratelimit"
	"github.com/spounge-ai/parishvault/internal/tenancy"
	"github.com/spounge-ai/parishvault/internal/wiring"
	"github.com/spounge-ai/parishvault/pkg/patterns/lifecycle"
	"golang.org/x/time/rate"
)

func newLogger(cfg *infra_config.Config) *slog.Logger {
	if cfg != nil && cfg.Server.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := infra_config.Load(os.Getenv("PARISHVAULT_CONFIG_PATH"))
	if err != nil {
		newLogger(nil).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	if err := run(ctx, cancel, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *infra_config.Config, logger *slog.Logger) error {
	tlsConfig, err := wiring.ConfigureTLS(cfg.Server.TLS)
	if err != nil {
		return err
	}

	container := wiring.NewContainer(cfg, logger)
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error("failed to close container", "error", err)
		}
	}()

	deps, err := container.GetDependencies(ctx)
	if err != nil {
		return err
	}

	if cfg.Registry.Type == "postgres" {
		applied, err := persistence.MigrateRegistry(ctx, cfg.Registry.URL, "")
		if err != nil {
			return err
		}
		logger.Info("registry schema checked", "applied", applied)
	}

	if deps.Provisioning != nil {
		report, err := deps.Provisioning.EnsureAllReady(ctx)
		if err != nil {
			return err
		}
		logger.Info("startup sweep finished",
			"total", report.Total, "ready", report.Ready, "failed", report.Failed, "duration", report.Duration)
	}

	var resources []lifecycle.ManagedResource
	if deps.Monitor != nil {
		resources = append(resources, wiring.NewMonitorResource(deps.Monitor, cfg.Registry.HealthCheckInterval))
	}

	var group *lifecycle.Group
	routerDeps := rest.RouterDeps{
		Pools:    deps.DataSource,
		Resolver: deps.Resolver,
		Tenancy: tenancy.MiddlewareConfig{
			RouteParam:  cfg.Auth.RouteParam,
			TenantClaim: cfg.Auth.TenantClaim,
			JWTSecret:   []byte(cfg.Auth.JWTSecret),
		},
		Health:     func(ctx context.Context) map[string]lifecycle.HealthStatus { return group.Health(ctx) },
		Prometheus: deps.Prometheus,
		Classifier: app_errors.NewErrorClassifier(logger),
		Logger:     logger,
	}
	if deps.Provisioning != nil {
		routerDeps.Creator = deps.Provisioning
	}
	if cfg.Server.AdminRateLimit > 0 {
		routerDeps.AdminLimiter = ratelimit.NewInMemoryRateLimiter(
			rate.Limit(cfg.Server.AdminRateLimit), max(cfg.Server.AdminBurst, 1), 10*time.Minute)
	}

	srv, port, err := rest.New(cfg.Server, rest.NewRouter(routerDeps), tlsConfig, logger)
	if err != nil {
		return err
	}
	resources = append(resources, srv)
	group = lifecycle.NewGroup(logger, resources...)

	logger.Info("starting application resources")
	if err := group.Start(ctx); err != nil {
		return err
	}
	logger.Info("application started successfully", "port", port, "version", cfg.ServiceVersion)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-signalChan:
		logger.Info("received shutdown signal", "signal", s.String())
	case <-ctx.Done():
		logger.Info("context cancelled, initiating shutdown")
	}
	cancel()

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	logger.Info("shutting down application resources")
	err = group.Stop(shutdownCtx)
	logger.Info("shutdown complete")
	return err
}
