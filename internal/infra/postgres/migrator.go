package postgres

import (
	"context"
	"embed"
	"log/slog"

	"github.com/spounge-ai/parishvault/internal/domain"
	psql "github.com/spounge-ai/parishvault/pkg/postgres"
)

//go:embed migrations/*.sql
var tenantMigrations embed.FS

// SchemaMigrator applies the embedded tenant schema with golang-migrate.
type SchemaMigrator struct {
	logger *slog.Logger
}

var _ domain.Migrator = (*SchemaMigrator)(nil)

func NewSchemaMigrator(logger *slog.Logger) *SchemaMigrator {
	return &SchemaMigrator{logger: logger}
}

func (m *SchemaMigrator) ApplyPendingMigrations(ctx context.Context, descriptor *domain.ConnectionDescriptor) error {
	src, err := psql.EmbeddedSource(tenantMigrations, "migrations")
	if err != nil {
		return err
	}

	applied, err := psql.Up(ctx, src, descriptor.URL())
	if err != nil {
		return err
	}
	if applied {
		m.logger.InfoContext(ctx, "tenant schema migrated", "database", descriptor.Database)
	}
	return nil
}
