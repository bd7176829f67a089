package tenancy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/internal/metrics"
)

// Source carries the tenant identifiers found on a unit of work.
type Source struct {
	RouteTenantID string
	ClaimTenantID string
}

func (s Source) requested() string {
	if s.RouteTenantID != "" {
		return s.RouteTenantID
	}
	return s.ClaimTenantID
}

// Resolver turns a Source into a TenantContext. Resolve never fails; every
// problem is recorded on the returned context.
type Resolver interface {
	Kind() string
	Resolve(ctx context.Context, src Source) *TenantContext
}

// RequestResolver looks tenants up in the registry and decrypts their
// descriptor.
type RequestResolver struct {
	registry domain.TenantRegistry
	cipher   *kms.Cipher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewRequestResolver(registry domain.TenantRegistry, cipher *kms.Cipher, m *metrics.Metrics, logger *slog.Logger) *RequestResolver {
	return &RequestResolver{registry: registry, cipher: cipher, metrics: m, logger: logger}
}

func (r *RequestResolver) Kind() string { return "request" }

func (r *RequestResolver) Resolve(ctx context.Context, src Source) *TenantContext {
	tc := r.resolve(ctx, src)
	r.metrics.RecordResolution(tc.State().String())
	return tc
}

func (r *RequestResolver) resolve(ctx context.Context, src Source) *TenantContext {
	requested := src.requested()
	if requested == "" {
		return unset()
	}

	publicID, err := domain.ParsePublicID(requested)
	if err != nil {
		r.logger.WarnContext(ctx, "unparsable tenant id", "requested_id", requested, "error", err)
		return invalid(requested, err)
	}

	entry, err := r.registry.FindByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, app_errors.ErrNotFound) {
			r.logger.WarnContext(ctx, "unknown tenant", "public_id", publicID)
		} else {
			r.logger.ErrorContext(ctx, "tenant lookup failed", "public_id", publicID, "error", err)
		}
		return invalid(requested, err)
	}

	descriptor, err := kms.OpenDescriptor(r.cipher, entry.EncryptedConnection, entry.KeyVersion)
	if err != nil {
		r.logger.ErrorContext(ctx, "tenant descriptor could not be decrypted",
			"public_id", publicID, "key_version", entry.KeyVersion, "error", err)
		return invalid(requested, err)
	}

	return resolved(requested, entry, descriptor)
}

// NoopResolver never resolves a tenant. Offline tooling uses it to carry an
// explicit descriptor without touching the registry.
type NoopResolver struct {
	override *domain.ConnectionDescriptor
}

func NewNoopResolver(override *domain.ConnectionDescriptor) *NoopResolver {
	return &NoopResolver{override: override}
}

func (n *NoopResolver) Kind() string { return "noop" }

// Resolve ignores src. Each context gets its own copy of the override so
// closing one does not wipe another.
func (n *NoopResolver) Resolve(_ context.Context, _ Source) *TenantContext {
	tc := unset()
	if n.override != nil {
		d := *n.override
		tc.override = &d
	}
	return tc
}
