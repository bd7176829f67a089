package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/parishvault/internal/domain"
	"github.com/spounge-ai/parishvault/internal/provisioning"
)

func newCreateTenantCommand(a *app) *cobra.Command {
	var (
		publicID      string
		name          string
		seedExamples  bool
		adminEmail    string
		adminName     string
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "create-tenant",
		Short: "Provision a new parish database and register it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParsePublicID(publicID)
			if err != nil {
				return err
			}

			svc, err := a.container.Provisioning(cmd.Context())
			if err != nil {
				return err
			}

			var opts provisioning.CreateOptions
			if cmd.Flags().Changed("seed-example-data") {
				opts.SeedExampleData = &seedExamples
			}
			if adminEmail != "" {
				opts.Admin = &domain.AdminPrincipal{Email: adminEmail, DisplayName: adminName, Password: adminPassword}
			}

			entry, err := svc.CreateTenant(cmd.Context(), id, name, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created id=%d public_id=%s key_version=%d\n", entry.ID, entry.PublicID, entry.KeyVersion)
			return nil
		},
	}

	cmd.Flags().StringVar(&publicID, "public-id", "", "external parish identifier (uuid)")
	cmd.Flags().StringVar(&name, "name", "", "parish display name")
	cmd.Flags().BoolVar(&seedExamples, "seed-example-data", false, "load example districts and parishioners")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "email of the parish administrator to create")
	cmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "display name of the parish administrator")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "initial administrator password")
	cmd.MarkFlagsRequiredTogether("admin-email", "admin-password")
	_ = cmd.MarkFlagRequired("public-id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newEnsureReadyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-ready",
		Short: "Re-apply provisioning and migrations to every registered parish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.container.Provisioning(cmd.Context())
			if err != nil {
				return err
			}

			report, err := svc.EnsureAllReady(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total=%d ready=%d failed=%d duration=%s\n", report.Total, report.Ready, report.Failed, report.Duration)
			for _, f := range report.Failures {
				fmt.Fprintf(out, "failed public_id=%s name=%q error=%q\n", f.PublicID, f.DisplayName, f.Err)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d parishes failed", report.Failed, report.Total)
			}
			return nil
		},
	}
}
