package tenancy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestResolver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("no identifier", func(t *testing.T) {
		tc := f.resolver.Resolve(ctx, Source{})
		assert.Equal(t, StateUnset, tc.State())
		assert.Nil(t, tc.ConnectionDescriptor())
		assert.NoError(t, tc.Err())
	})

	t.Run("unparsable identifier", func(t *testing.T) {
		tc := f.resolver.Resolve(ctx, Source{RouteTenantID: "not-a-uuid"})
		assert.Equal(t, StateInvalid, tc.State())
		assert.ErrorIs(t, tc.Err(), app_errors.ErrInvalidInput)
		assert.Equal(t, "not-a-uuid", tc.RequestedID())
	})

	t.Run("unknown tenant", func(t *testing.T) {
		tc := f.resolver.Resolve(ctx, Source{RouteTenantID: uuid.NewString()})
		assert.Equal(t, StateInvalid, tc.State())
		assert.ErrorIs(t, tc.Err(), app_errors.ErrNotFound)
		assert.False(t, tc.IsResolved())
		assert.Nil(t, tc.ConnectionDescriptor())
	})

	t.Run("known tenant", func(t *testing.T) {
		tc := f.resolver.Resolve(ctx, Source{RouteTenantID: f.entry.PublicID.String()})
		require.True(t, tc.IsResolved())
		assert.Equal(t, f.entry.PublicID, tc.PublicID())
		assert.Equal(t, "St. Clare", tc.DisplayName())
		assert.Equal(t, "parish_aaa", tc.ConnectionDescriptor().Database)

		tc.Close()
		assert.Equal(t, StateUnset, tc.State())
		assert.Nil(t, tc.ConnectionDescriptor())
	})

	t.Run("route wins over claim", func(t *testing.T) {
		tc := f.resolver.Resolve(ctx, Source{RouteTenantID: uuid.NewString(), ClaimTenantID: f.entry.PublicID.String()})
		assert.Equal(t, StateInvalid, tc.State())
	})

	t.Run("claim used without route", func(t *testing.T) {
		tc := f.resolver.Resolve(ctx, Source{ClaimTenantID: f.entry.PublicID.String()})
		assert.True(t, tc.IsResolved())
	})
}

func TestRequestResolverUndecryptableEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.UpdateEncryptedDescriptor(ctx, f.entry.ID, "AAAA", f.entry.KeyVersion))

	tc := f.resolver.Resolve(ctx, Source{RouteTenantID: f.entry.PublicID.String()})
	assert.Equal(t, StateInvalid, tc.State())
	assert.ErrorIs(t, tc.Err(), app_errors.ErrCryptoFailure)
}

func TestNoopResolver(t *testing.T) {
	override := &domain.ConnectionDescriptor{Host: "localhost", Port: 5432, Database: "parish_x", User: "u", Password: "pw"}
	r := NewNoopResolver(override)
	assert.Equal(t, "noop", r.Kind())

	a := r.Resolve(context.Background(), Source{RouteTenantID: uuid.NewString()})
	b := r.Resolve(context.Background(), Source{})

	assert.Equal(t, StateUnset, a.State())
	assert.False(t, a.IsResolved())
	assert.Equal(t, "parish_x", a.ConnectionDescriptor().Database)

	a.Close()
	assert.Nil(t, a.ConnectionDescriptor())
	assert.Equal(t, "pw", b.ConnectionDescriptor().Password)
	assert.Equal(t, "pw", override.Password)

	assert.Nil(t, NewNoopResolver(nil).Resolve(context.Background(), Source{}).ConnectionDescriptor())
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	var missing *TenantContext
	assert.Equal(t, StateUnset, missing.State())
	assert.NotPanics(t, missing.Close)

	tc := unset()
	got, ok := FromContext(WithContext(context.Background(), tc))
	assert.True(t, ok)
	assert.Same(t, tc, got)
}
