package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/parishvault/internal/domain"
	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	"github.com/spounge-ai/parishvault/internal/infra/postgres"
	"github.com/spounge-ai/parishvault/internal/tenancy"
	psql "github.com/spounge-ai/parishvault/pkg/postgres"
)

func newMigrateRegistryCommand(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate-registry",
		Short: "Apply registry schema migrations and list its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := a.container.GetDependencies(cmd.Context())
			if err != nil {
				return err
			}
			if deps.RegistryPool == nil {
				return errors.New("migrate-registry needs registry.type postgres")
			}

			applied, err := persistence.MigrateRegistry(cmd.Context(), a.container.Config().Registry.URL, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if applied {
				fmt.Fprintln(out, "Migrations completed successfully.")
			} else {
				fmt.Fprintln(out, "Registry schema is up to date.")
			}

			tables, err := psql.PublicTables(cmd.Context(), deps.RegistryPool)
			if err != nil {
				return err
			}
			printTables(out, tables)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")
	return cmd
}

// newMigrateTenantCommand migrates one tenant database from an explicit
// descriptor, without reading the registry or the key ring.
func newMigrateTenantCommand(a *app) *cobra.Command {
	var descriptorFile string

	cmd := &cobra.Command{
		Use:   "migrate-tenant",
		Short: "Apply tenant schema migrations to one database given its descriptor",
		Long: `Apply the tenant schema to the database described by a JSON connection
descriptor ({"host","port","database","user","password","sslmode"}). The
registry is not consulted.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLoggerOnly(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(descriptorFile)
			if err != nil {
				return fmt.Errorf("failed to read descriptor: %w", err)
			}
			d, err := domain.UnmarshalDescriptor(raw)
			if err != nil {
				return err
			}
			return migrateTenant(cmd.Context(), a, cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&descriptorFile, "descriptor-file", "", "path to a JSON connection descriptor")
	_ = cmd.MarkFlagRequired("descriptor-file")
	return cmd
}

func migrateTenant(ctx context.Context, a *app, out io.Writer, d *domain.ConnectionDescriptor) error {
	tc := tenancy.NewNoopResolver(d).Resolve(ctx, tenancy.Source{})
	defer tc.Close()
	d.Wipe()
	ctx = tenancy.WithContext(ctx, tc)

	if err := postgres.NewSchemaMigrator(a.logger).ApplyPendingMigrations(ctx, tc.ConnectionDescriptor()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Tenant database %s migrated.\n", tc.ConnectionDescriptor().Database)

	ds := tenancy.NewDataSource(tenancy.NewTenantPool(1), time.Minute, nil, a.logger)
	defer ds.Close()

	pool, err := ds.Pool(ctx)
	if err != nil {
		return err
	}
	tables, err := psql.PublicTables(ctx, pool)
	if err != nil {
		return err
	}
	printTables(out, tables)
	return nil
}

func printTables(out io.Writer, tables []string) {
	if len(tables) == 0 {
		fmt.Fprintln(out, "No tables found in 'public' schema.")
		return
	}
	fmt.Fprintln(out, "Tables found:")
	for _, t := range tables {
		fmt.Fprintf(out, "- %s\n", t)
	}
}
