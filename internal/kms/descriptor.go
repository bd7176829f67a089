package kms

import (
	"fmt"

	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/pkg/memory"
)

// SealDescriptor serializes and encrypts a descriptor under the current key
// version. It returns the ciphertext together with the version used, which
// callers must persist as a pair.
func SealDescriptor(c *Cipher, d *domain.ConnectionDescriptor) (string, int, error) {
	raw, err := domain.MarshalDescriptor(d)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", app_errors.ErrInvalidInput, err)
	}
	defer memory.SecureZeroBytes(raw)

	ciphertext, err := c.Encrypt(raw)
	if err != nil {
		return "", 0, err
	}
	return ciphertext, c.CurrentKeyVersion(), nil
}

// OpenDescriptor decrypts a stored descriptor with the key version it was
// sealed under.
func OpenDescriptor(c *Cipher, ciphertext string, keyVersion int) (*domain.ConnectionDescriptor, error) {
	raw, err := c.Decrypt(ciphertext, keyVersion)
	if err != nil {
		return nil, err
	}
	defer memory.SecureZeroBytes(raw)

	d, err := domain.UnmarshalDescriptor(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app_errors.ErrCryptoFailure, err)
	}
	return d, nil
}
