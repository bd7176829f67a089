package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spounge-ai/parishvault/internal/domain"
	infra_config "github.com/spounge-ai/parishvault/internal/infra/config"
	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	infra_secrets "github.com/spounge-ai/parishvault/internal/infra/secrets"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/internal/metrics"
	"github.com/spounge-ai/parishvault/internal/secrets"
	"github.com/spounge-ai/parishvault/pkg/patterns/circuitbreaker"
)

func provideAWSConfig(ctx context.Context, cfg *infra_config.Config) (*aws.Config, error) {
	if !cfg.AWS.Enabled {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &awsCfg, nil
}

// expandSecrets resolves ssm: references in cfg. References without AWS
// enabled are a configuration error.
func expandSecrets(ctx context.Context, cfg *infra_config.Config, awsCfg *aws.Config) error {
	refs := cfg.SecretRefs()
	if !secrets.HasRefs(refs...) {
		return nil
	}
	if awsCfg == nil {
		return fmt.Errorf("configuration references ssm parameters but aws is disabled")
	}
	return secrets.Expand(ctx, infra_secrets.NewParameterStore(*awsCfg), refs...)
}

func provideCipher(ctx context.Context, cfg *infra_config.Config, awsCfg *aws.Config) (*kms.Cipher, error) {
	encoded := make([]kms.EncodedKey, 0, len(cfg.Crypto.Keys))
	wrapped := false
	for _, k := range cfg.Crypto.Keys {
		encoded = append(encoded, kms.EncodedKey{Version: k.Version, Material: k.Material, KMSWrapped: k.KMSWrapped})
		wrapped = wrapped || k.KMSWrapped
	}

	var unwrapper kms.KeyUnwrapper
	if wrapped && awsCfg != nil {
		unwrapper = kms.NewAWSKeyUnwrapper(*awsCfg, cfg.AWS.KMSKeyARN)
	}

	material, err := kms.DecodeKeyMaterial(ctx, encoded, unwrapper)
	if err != nil {
		return nil, err
	}
	return kms.NewCipher(cfg.Crypto.CurrentVersion, material)
}

func provideRegistryPool(ctx context.Context, cfg *infra_config.Config) (*pgxpool.Pool, error) {
	if cfg.Registry.Type != "postgres" {
		return nil, nil
	}
	return persistence.NewSecureConnectionPool(ctx, cfg.Registry, cfg.Server)
}

func provideRegistry(cfg *infra_config.Config, pool *pgxpool.Pool, m *metrics.Metrics, logger *slog.Logger) domain.TenantRegistry {
	var registry domain.TenantRegistry
	if pool != nil {
		registry = persistence.NewPostgresRegistry(pool, logger, cfg.Registry.QueryTimeout)
	} else {
		logger.Warn("using in-memory tenant registry; entries are lost on exit")
		registry = persistence.NewInMemoryRegistry()
	}

	cb := cfg.Registry.CircuitBreaker
	if !cb.Enabled {
		return registry
	}
	return persistence.NewRegistryCircuitBreaker(registry, cb.MaxFailures, cb.ResetTimeout, logger,
		func(_, to circuitbreaker.State) {
			m.SetRegistryBreakerOpen(to == circuitbreaker.StateOpen)
		})
}

func provideAdminPool(ctx context.Context, cfg *infra_config.Config) (*pgxpool.Pool, error) {
	if cfg.Admin.URL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Admin.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin pool: %w", err)
	}
	return pool, nil
}

func provideSnapshotter(cfg *infra_config.Config, awsCfg *aws.Config, logger *slog.Logger) *persistence.S3Snapshotter {
	if awsCfg == nil || cfg.AWS.SnapshotBucket == "" {
		return nil
	}
	return persistence.NewS3Snapshotter(*awsCfg, cfg.AWS.SnapshotBucket, cfg.AWS.SnapshotPrefix, logger)
}
