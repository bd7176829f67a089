package persistence

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4/source"
	psql "github.com/spounge-ai/parishvault/pkg/postgres"
)

//go:embed migrations/*.sql
var registryMigrations embed.FS

// MigrateRegistry brings the registry schema up to date. dir overrides the
// embedded migrations when non-empty.
func MigrateRegistry(ctx context.Context, databaseURL, dir string) (bool, error) {
	var (
		src source.Driver
		err error
	)
	if dir != "" {
		src, err = psql.DirSource(dir)
	} else {
		src, err = psql.EmbeddedSource(registryMigrations, "migrations")
	}
	if err != nil {
		return false, err
	}

	applied, err := psql.Up(ctx, src, databaseURL)
	if err != nil {
		return applied, fmt.Errorf("registry: %w", err)
	}
	return applied, nil
}
