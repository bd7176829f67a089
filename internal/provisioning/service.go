package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/internal/metrics"
	"github.com/spounge-ai/parishvault/pkg/execution"
)

// Config carries the provisioning defaults.
type Config struct {
	TenantHost      string
	TenantPort      int
	SSLMode         string
	DefaultRoles    []string
	SeedExampleData bool
	// DefaultAdmin is seeded into every new parish unless CreateOptions
	// names a different one.
	DefaultAdmin  *domain.AdminPrincipal
	TenantTimeout time.Duration
}

// CreateOptions override the configured seeding defaults for one parish.
type CreateOptions struct {
	SeedExampleData *bool
	Admin           *domain.AdminPrincipal
}

type Dependencies struct {
	Cipher   *kms.Cipher
	Registry domain.TenantRegistry
	Admin    domain.ResourceAdmin
	Migrator domain.Migrator
	Seeder   domain.Seeder // optional
	Audit    domain.AuditLogger
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Service creates parish databases and keeps existing ones in shape.
type Service struct {
	Dependencies
	cfg            Config
	validate       *validator.Validate
	newCredentials func() (Credentials, error)
}

func NewService(deps Dependencies, cfg Config) (*Service, error) {
	switch {
	case deps.Cipher == nil:
		return nil, errors.New("provisioning: cipher is required")
	case deps.Registry == nil:
		return nil, errors.New("provisioning: registry is required")
	case deps.Admin == nil:
		return nil, errors.New("provisioning: resource admin is required")
	case deps.Migrator == nil:
		return nil, errors.New("provisioning: migrator is required")
	case deps.Logger == nil:
		return nil, errors.New("provisioning: logger is required")
	}

	return &Service{
		Dependencies:   deps,
		cfg:            cfg,
		validate:       validator.New(),
		newCredentials: GenerateCredentials,
	}, nil
}

type createRequest struct {
	PublicID uuid.UUID `validate:"required"`
	Name     string    `validate:"required,max=200"`
}

// CreateTenant provisions a database, login and schema for a new parish and
// records it in the registry. Seeding afterwards is best-effort.
func (s *Service) CreateTenant(ctx context.Context, publicID uuid.UUID, name string, opts CreateOptions) (*domain.TenantEntry, error) {
	req := createRequest{PublicID: publicID, Name: strings.TrimSpace(name)}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", app_errors.ErrInvalidInput, err)
	}

	_, err := s.Registry.FindByPublicID(ctx, publicID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("parish %s: %w", publicID, app_errors.ErrAlreadyExists)
	case !errors.Is(err, app_errors.ErrNotFound):
		return nil, fmt.Errorf("failed to check parish %s: %w", publicID, err)
	}

	creds, err := s.newCredentials()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app_errors.ErrProvisioningFailure, err)
	}

	descriptor := &domain.ConnectionDescriptor{
		Host:     s.cfg.TenantHost,
		Port:     s.cfg.TenantPort,
		Database: creds.Database,
		User:     creds.Login,
		Password: creds.Secret,
		SSLMode:  s.cfg.SSLMode,
	}
	defer descriptor.Wipe()

	logger := s.Logger.With("public_id", publicID, "database", creds.Database)

	if err := s.ensureResources(ctx, descriptor); err != nil {
		logger.ErrorContext(ctx, "tenant provisioning failed", "error", err)
		return nil, err
	}
	if err := s.migrate(ctx, descriptor); err != nil {
		logger.ErrorContext(ctx, "tenant migration failed", "error", err)
		return nil, err
	}

	ciphertext, version, err := kms.SealDescriptor(s.Cipher, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to protect descriptor for parish %s: %w", publicID, err)
	}

	entry := &domain.TenantEntry{
		PublicID:            publicID,
		DisplayName:         req.Name,
		EncryptedConnection: ciphertext,
		KeyVersion:          version,
	}
	if err := s.Registry.Create(ctx, entry); err != nil {
		// resources created above stay behind; a retry with a new id reuses nothing
		logger.ErrorContext(ctx, "failed to register tenant", "error", err)
		return nil, err
	}

	s.seed(ctx, entry, descriptor, opts)

	s.Metrics.IncrementTenantCreated()
	s.audit(ctx, &domain.AuditEvent{
		Action:     domain.AuditTenantCreated,
		PublicID:   publicID.String(),
		KeyVersion: version,
		Success:    true,
	})
	logger.InfoContext(ctx, "tenant created", "id", entry.ID, "key_version", version)
	return entry, nil
}

func (s *Service) ensureResources(ctx context.Context, d *domain.ConnectionDescriptor) error {
	if err := s.Admin.EnsureDatabase(ctx, d.Database); err != nil {
		s.Metrics.IncrementProvisioningFailure("database")
		return fmt.Errorf("%w: database %s: %v", app_errors.ErrProvisioningFailure, d.Database, err)
	}
	if err := s.Admin.EnsureLogin(ctx, d.User, d.Password); err != nil {
		s.Metrics.IncrementProvisioningFailure("login")
		return fmt.Errorf("%w: login %s: %v", app_errors.ErrProvisioningFailure, d.User, err)
	}
	if err := s.Admin.EnsureUser(ctx, d.Database, d.User, s.cfg.DefaultRoles); err != nil {
		s.Metrics.IncrementProvisioningFailure("user")
		return fmt.Errorf("%w: user %s on %s: %v", app_errors.ErrProvisioningFailure, d.User, d.Database, err)
	}
	return nil
}

func (s *Service) migrate(ctx context.Context, d *domain.ConnectionDescriptor) error {
	if err := s.Migrator.ApplyPendingMigrations(ctx, d); err != nil {
		s.Metrics.IncrementProvisioningFailure("migration")
		return fmt.Errorf("%w: %s: %v", app_errors.ErrMigrationFailure, d.Database, err)
	}
	return nil
}

func (s *Service) seed(ctx context.Context, entry *domain.TenantEntry, d *domain.ConnectionDescriptor, opts CreateOptions) {
	if s.Seeder == nil {
		return
	}

	admin := s.cfg.DefaultAdmin
	if opts.Admin != nil {
		admin = opts.Admin
	}
	if admin != nil {
		if err := s.Seeder.SeedAdmin(ctx, d, *admin); err != nil {
			s.seedFailed(ctx, entry, "admin", err)
		}
	}

	examples := s.cfg.SeedExampleData
	if opts.SeedExampleData != nil {
		examples = *opts.SeedExampleData
	}
	if examples {
		if err := s.Seeder.SeedExampleData(ctx, d); err != nil {
			s.seedFailed(ctx, entry, "example_data", err)
		}
	}
}

func (s *Service) seedFailed(ctx context.Context, entry *domain.TenantEntry, kind string, err error) {
	err = fmt.Errorf("%w: %s: %v", app_errors.ErrSeedFailure, kind, err)
	s.Logger.WarnContext(ctx, "tenant seeding failed", "public_id", entry.PublicID, "kind", kind, "error", err)
	s.Metrics.IncrementSeedFailure(kind)
	s.audit(ctx, &domain.AuditEvent{
		Action:   domain.AuditTenantSeedFailed,
		PublicID: entry.PublicID.String(),
		Error:    err.Error(),
		Details:  map[string]string{"kind": kind},
	})
}

// TenantFailure is one parish that a sweep could not bring up to date.
type TenantFailure struct {
	PublicID    uuid.UUID
	DisplayName string
	Err         error
}

type SweepReport struct {
	Total    int
	Ready    int
	Failed   int
	Failures []TenantFailure
	Duration time.Duration
}

// EnsureAllReady re-applies resources and migrations to every registered
// parish, one at a time. A parish that fails is reported and skipped; only
// failing to read the registry is returned as an error.
func (s *Service) EnsureAllReady(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	defer s.Metrics.ObserveSweep(start)

	entries, err := s.Registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parishes: %w", err)
	}

	report := &SweepReport{Total: len(entries)}
	for _, entry := range entries {
		_, err := execution.WithTimeout(ctx, s.cfg.TenantTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.ensureEntry(ctx, entry)
		})
		s.Metrics.RecordSweepTenant(err == nil)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, TenantFailure{
				PublicID:    entry.PublicID,
				DisplayName: entry.DisplayName,
				Err:         err,
			})
			s.Logger.ErrorContext(ctx, "tenant not ready", "public_id", entry.PublicID, "error", err)
			s.audit(ctx, &domain.AuditEvent{
				Action:   domain.AuditTenantEnsured,
				PublicID: entry.PublicID.String(),
				Error:    err.Error(),
			})
			continue
		}
		report.Ready++
	}

	report.Duration = time.Since(start)
	s.Logger.InfoContext(ctx, "ensure-ready sweep finished",
		"total", report.Total, "ready", report.Ready, "failed", report.Failed, "duration", report.Duration)
	return report, nil
}

func (s *Service) ensureEntry(ctx context.Context, entry *domain.TenantEntry) error {
	descriptor, err := kms.OpenDescriptor(s.Cipher, entry.EncryptedConnection, entry.KeyVersion)
	if err != nil {
		return err
	}
	defer descriptor.Wipe()

	if err := s.ensureResources(ctx, descriptor); err != nil {
		return err
	}
	return s.migrate(ctx, descriptor)
}

func (s *Service) audit(ctx context.Context, event *domain.AuditEvent) {
	if s.Audit != nil {
		s.Audit.Record(ctx, event)
	}
}
