package pipelines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/internal/metrics"
)

// RegistrySnapshotter stores a copy of the registry before it is rewritten.
type RegistrySnapshotter interface {
	Snapshot(ctx context.Context, reason string, entries []*domain.TenantEntry) (string, error)
}

type RotateOptions struct {
	// TargetVersion defaults to the cipher's current version.
	TargetVersion *int
	// DryRun re-encrypts every entry but writes nothing.
	DryRun bool
}

// RotationFailure is one entry the job could not move.
type RotationFailure struct {
	ID       int64
	PublicID uuid.UUID
	Err      error
}

type RotationReport struct {
	Total       int
	Updated     int
	Skipped     int
	Errored     int
	DryRun      bool
	Target      int
	SnapshotKey string
	Failures    []RotationFailure
	Duration    time.Duration
}

// VersionCount is how many registry entries reference one key version.
type VersionCount struct {
	KeyVersion int
	Count      int
	Configured bool
}

// KeyRotationJob moves every registry entry onto one key version. It runs
// once per invocation, one entry at a time, and can be interrupted at any
// point: each entry is rewritten as a single ciphertext/version pair, so the
// registry is always readable with the configured keys.
type KeyRotationJob struct {
	cipher      *kms.Cipher
	registry    domain.TenantRegistry
	snapshotter RegistrySnapshotter
	audit       domain.AuditLogger
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewKeyRotationJob creates a job. snapshotter, audit and m may be nil.
func NewKeyRotationJob(cipher *kms.Cipher, registry domain.TenantRegistry, snapshotter RegistrySnapshotter, audit domain.AuditLogger, m *metrics.Metrics, logger *slog.Logger) *KeyRotationJob {
	return &KeyRotationJob{
		cipher:      cipher,
		registry:    registry,
		snapshotter: snapshotter,
		audit:       audit,
		metrics:     m,
		logger:      logger,
	}
}

// RotateKeys re-encrypts every entry not already at the target version.
// Per-entry failures are collected in the report and processing continues;
// the returned error covers only an unknown target, a failed registry read
// or a failed snapshot.
func (j *KeyRotationJob) RotateKeys(ctx context.Context, opts RotateOptions) (*RotationReport, error) {
	start := time.Now()

	target := j.cipher.CurrentKeyVersion()
	if opts.TargetVersion != nil {
		target = *opts.TargetVersion
	}
	if !j.cipher.HasVersion(target) {
		return nil, fmt.Errorf("%w: key version %d is not configured (have %v)", app_errors.ErrInvalidInput, target, j.cipher.Versions())
	}

	entries, err := j.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parishes: %w", err)
	}

	report := &RotationReport{Total: len(entries), DryRun: opts.DryRun, Target: target}

	if !opts.DryRun && j.snapshotter != nil && needsRotation(entries, target) {
		key, err := j.snapshotter.Snapshot(ctx, fmt.Sprintf("rotate-keys to v%d", target), entries)
		if err != nil {
			return nil, fmt.Errorf("refusing to rotate without a snapshot: %w", err)
		}
		report.SnapshotKey = key
	}

	for _, entry := range entries {
		if entry.KeyVersion == target {
			report.Skipped++
			j.metrics.RecordRotation("skipped")
			continue
		}

		if err := j.rotateEntry(ctx, entry, target, opts.DryRun); err != nil {
			report.Errored++
			report.Failures = append(report.Failures, RotationFailure{ID: entry.ID, PublicID: entry.PublicID, Err: err})
			j.metrics.RecordRotation("errored")
			j.logger.ErrorContext(ctx, "key rotation failed for parish",
				"public_id", entry.PublicID, "from_version", entry.KeyVersion, "to_version", target, "error", err)
			continue
		}
		report.Updated++
		j.metrics.RecordRotation("updated")
	}

	report.Duration = time.Since(start)
	j.logger.InfoContext(ctx, "key rotation finished",
		"target", target, "dry_run", opts.DryRun, "total", report.Total,
		"updated", report.Updated, "skipped", report.Skipped, "errored", report.Errored)

	if j.audit != nil {
		j.audit.Record(ctx, &domain.AuditEvent{
			Action:     domain.AuditRotationFinished,
			KeyVersion: target,
			Success:    report.Errored == 0,
			Details: map[string]string{
				"dry_run": strconv.FormatBool(opts.DryRun),
				"total":   strconv.Itoa(report.Total),
				"updated": strconv.Itoa(report.Updated),
				"skipped": strconv.Itoa(report.Skipped),
				"errored": strconv.Itoa(report.Errored),
			},
		})
	}
	return report, nil
}

func (j *KeyRotationJob) rotateEntry(ctx context.Context, entry *domain.TenantEntry, target int, dryRun bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ciphertext, err := j.cipher.Reencrypt(entry.EncryptedConnection, entry.KeyVersion, target)
	if err != nil {
		return err
	}
	if dryRun {
		return nil
	}

	if err := j.registry.UpdateEncryptedDescriptor(ctx, entry.ID, ciphertext, target); err != nil {
		return err
	}

	if j.audit != nil {
		j.audit.Record(ctx, &domain.AuditEvent{
			Action:     domain.AuditKeyRotated,
			PublicID:   entry.PublicID.String(),
			KeyVersion: target,
			Success:    true,
			Details:    map[string]string{"from_version": strconv.Itoa(entry.KeyVersion)},
		})
	}
	return nil
}

func needsRotation(entries []*domain.TenantEntry, target int) bool {
	for _, e := range entries {
		if e.KeyVersion != target {
			return true
		}
	}
	return false
}

// ReportKeyVersions counts registry entries per key version. It only reads.
func (j *KeyRotationJob) ReportKeyVersions(ctx context.Context) ([]VersionCount, error) {
	entries, err := j.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parishes: %w", err)
	}

	counts := make(map[int]int)
	for _, e := range entries {
		counts[e.KeyVersion]++
	}

	out := make([]VersionCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, VersionCount{KeyVersion: v, Count: n, Configured: j.cipher.HasVersion(v)})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].KeyVersion < out[b].KeyVersion })
	return out, nil
}

// Err joins every per-entry failure, or returns nil when there were none.
func (r *RotationReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("parish %s: %w", f.PublicID, f.Err))
	}
	return errors.Join(errs...)
}
