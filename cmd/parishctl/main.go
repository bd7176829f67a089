package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	infra_config "github.com/spounge-ai/parishvault/internal/infra/config"
	"github.com/spounge-ai/parishvault/internal/wiring"
)

// app is shared by every subcommand. The container is built on first use
// so --help never touches the network.
type app struct {
	configPath string
	verbose    bool

	logger    *slog.Logger
	container *wiring.Container
}

func (a *app) setupLoggerOnly(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := a.setupLoggerOnly(cmd); err != nil {
		return err
	}

	cfg, err := infra_config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.container = wiring.NewContainer(cfg, a.logger)
	return nil
}

func (a *app) close() {
	if a.container == nil {
		return
	}
	if err := a.container.Close(); err != nil {
		a.logger.Error("failed to close container", "error", err)
	}
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "parishctl",
		Short:         "Operate the parish tenant registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("PARISHVAULT_CONFIG_PATH"), "path to the config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRotateKeysCommand(a),
		newReportKeyVersionsCommand(a),
		newCreateTenantCommand(a),
		newEnsureReadyCommand(a),
		newMigrateRegistryCommand(a),
		newMigrateTenantCommand(a),
	)
	return root, a
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root, a := newRootCommand()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
