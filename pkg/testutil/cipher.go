package testutil

import (
	"crypto/rand"
	"testing"

	"github.com/spounge-ai/parishvault/internal/kms"
	"github.com/stretchr/testify/require"
)

// KeyMaterial returns fresh random 32-byte material for each version.
func KeyMaterial(t testing.TB, versions ...int) []kms.KeyMaterial {
	t.Helper()
	out := make([]kms.KeyMaterial, 0, len(versions))
	for _, v := range versions {
		m := make([]byte, 32)
		_, err := rand.Read(m)
		require.NoError(t, err)
		out = append(out, kms.KeyMaterial{Version: v, Material: m})
	}
	return out
}

// Cipher builds a cipher over material with the given current version.
func Cipher(t testing.TB, current int, material []kms.KeyMaterial) *kms.Cipher {
	t.Helper()
	c, err := kms.NewCipher(current, material)
	require.NoError(t, err)
	return c
}
