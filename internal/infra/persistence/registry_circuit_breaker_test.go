package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/pkg/patterns/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRegistry struct {
	*InMemoryRegistry
	listErr error
	calls   int
}

func (f *failingRegistry) ListAll(ctx context.Context) ([]*domain.TenantEntry, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.InMemoryRegistry.ListAll(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryCircuitBreakerOpens(t *testing.T) {
	inner := &failingRegistry{InMemoryRegistry: NewInMemoryRegistry(), listErr: errors.New("db down")}
	var transitions []circuitbreaker.State
	cb := NewRegistryCircuitBreaker(inner, 2, time.Hour, discardLogger(), func(_, to circuitbreaker.State) {
		transitions = append(transitions, to)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := cb.ListAll(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, app_errors.ErrRegistryUnavailable)
	}

	_, err := cb.ListAll(ctx)
	assert.ErrorIs(t, err, app_errors.ErrRegistryUnavailable)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []circuitbreaker.State{circuitbreaker.StateOpen}, transitions)
}

func TestRegistryCircuitBreakerIgnoresDomainMisses(t *testing.T) {
	cb := NewRegistryCircuitBreaker(NewInMemoryRegistry(), 1, time.Hour, discardLogger(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cb.FindByPublicID(ctx, uuid.New())
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	}

	id := uuid.New()
	require.NoError(t, cb.Create(ctx, &domain.TenantEntry{PublicID: id, DisplayName: "A", EncryptedConnection: "c", KeyVersion: 1}))
	for i := 0; i < 3; i++ {
		err := cb.Create(ctx, &domain.TenantEntry{PublicID: id, DisplayName: "A", EncryptedConnection: "c", KeyVersion: 1})
		assert.ErrorIs(t, err, app_errors.ErrAlreadyExists)
	}

	entry, err := cb.FindByPublicID(ctx, id)
	require.NoError(t, err)
	require.NoError(t, cb.UpdateEncryptedDescriptor(ctx, entry.ID, "c2", 2))
}
