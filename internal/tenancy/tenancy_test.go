package tenancy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/spounge-ai/parishvault/pkg/testutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry *persistence.InMemoryRegistry
	cipher   *kms.Cipher
	resolver *RequestResolver
	entry    *domain.TenantEntry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		registry: persistence.NewInMemoryRegistry(),
		cipher:   testutil.Cipher(t, 1, testutil.KeyMaterial(t, 1)),
	}
	f.resolver = NewRequestResolver(f.registry, f.cipher, nil, testutil.DiscardLogger())

	d := &domain.ConnectionDescriptor{
		Host: "127.0.0.1", Port: 5432, Database: "parish_aaa", User: "parish_u_aaa", Password: "pw", SSLMode: "disable",
	}
	ct, v, err := kms.SealDescriptor(f.cipher, d)
	require.NoError(t, err)

	f.entry = &domain.TenantEntry{PublicID: uuid.New(), DisplayName: "St. Clare", EncryptedConnection: ct, KeyVersion: v}
	require.NoError(t, f.registry.Create(ctx, f.entry))
	return f
}
