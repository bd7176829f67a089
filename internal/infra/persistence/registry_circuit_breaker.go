package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/pkg/patterns/circuitbreaker"
)

// RegistryCircuitBreaker adds a circuit breaker to a TenantRegistry. It uses
// one type-safe breaker per result type. Lookups that miss and duplicate
// inserts are answers, not outages, and never trip a breaker.
type RegistryCircuitBreaker struct {
	registry     domain.TenantRegistry
	entryBreaker *circuitbreaker.Breaker[*domain.TenantEntry]
	listBreaker  *circuitbreaker.Breaker[[]*domain.TenantEntry]
	voidBreaker  *circuitbreaker.Breaker[struct{}]
}

var _ domain.TenantRegistry = (*RegistryCircuitBreaker)(nil)

func isRegistryFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, app_errors.ErrNotFound) &&
		!errors.Is(err, app_errors.ErrAlreadyExists) &&
		!errors.Is(err, app_errors.ErrInvalidInput)
}

// NewRegistryCircuitBreaker wraps registry. onStateChange may be nil.
func NewRegistryCircuitBreaker(registry domain.TenantRegistry, maxFailures int, resetTimeout time.Duration, logger *slog.Logger, onStateChange func(from, to circuitbreaker.State)) *RegistryCircuitBreaker {
	hook := func(name string) func(from, to circuitbreaker.State) {
		return func(from, to circuitbreaker.State) {
			logger.Warn("registry circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if onStateChange != nil {
				onStateChange(from, to)
			}
		}
	}

	return &RegistryCircuitBreaker{
		registry: registry,
		entryBreaker: circuitbreaker.New(maxFailures,
			circuitbreaker.WithResetTimeout[*domain.TenantEntry](resetTimeout),
			circuitbreaker.WithFailurePredicate[*domain.TenantEntry](isRegistryFailure),
			circuitbreaker.WithStateChangeHook[*domain.TenantEntry](hook("entry")),
		),
		listBreaker: circuitbreaker.New(maxFailures,
			circuitbreaker.WithResetTimeout[[]*domain.TenantEntry](resetTimeout),
			circuitbreaker.WithFailurePredicate[[]*domain.TenantEntry](isRegistryFailure),
			circuitbreaker.WithStateChangeHook[[]*domain.TenantEntry](hook("list")),
		),
		voidBreaker: circuitbreaker.New(maxFailures,
			circuitbreaker.WithResetTimeout[struct{}](resetTimeout),
			circuitbreaker.WithFailurePredicate[struct{}](isRegistryFailure),
			circuitbreaker.WithStateChangeHook[struct{}](hook("write")),
		),
	}
}

func unavailable(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", app_errors.ErrRegistryUnavailable, err)
	}
	return err
}

func (cb *RegistryCircuitBreaker) Create(ctx context.Context, entry *domain.TenantEntry) error {
	_, err := cb.voidBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, cb.registry.Create(ctx, entry)
	})
	return unavailable(err)
}

func (cb *RegistryCircuitBreaker) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.TenantEntry, error) {
	entry, err := cb.entryBreaker.Execute(ctx, func(ctx context.Context) (*domain.TenantEntry, error) {
		return cb.registry.FindByPublicID(ctx, publicID)
	})
	return entry, unavailable(err)
}

func (cb *RegistryCircuitBreaker) UpdateEncryptedDescriptor(ctx context.Context, id int64, ciphertext string, keyVersion int) error {
	_, err := cb.voidBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, cb.registry.UpdateEncryptedDescriptor(ctx, id, ciphertext, keyVersion)
	})
	return unavailable(err)
}

func (cb *RegistryCircuitBreaker) ListAll(ctx context.Context) ([]*domain.TenantEntry, error) {
	entries, err := cb.listBreaker.Execute(ctx, func(ctx context.Context) ([]*domain.TenantEntry, error) {
		return cb.registry.ListAll(ctx)
	})
	return entries, unavailable(err)
}
