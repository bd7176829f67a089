package kms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/pkg/memory"
)

// AES-256-GCM; ciphertext is base64(nonce || sealed).

const aesKeySize = 32

// Cipher encrypts connection descriptors under versioned keys. It holds no
// mutable state after construction and is safe for concurrent use.
type Cipher struct {
	aeads   map[int]cipher.AEAD
	current int
}

// NewCipher derives one AES key per configured version. The current version
// must be among them.
func NewCipher(current int, material []KeyMaterial) (*Cipher, error) {
	if err := validateKeyMaterial(current, material); err != nil {
		return nil, err
	}

	aeads := make(map[int]cipher.AEAD, len(material))
	for _, m := range material {
		key, err := DeriveKey(m.Material, descriptorSalt(m.Version), descriptorInfo, aesKeySize)
		if err != nil {
			return nil, fmt.Errorf("key version %d: %w", m.Version, err)
		}

		aead, err := newAEAD(key)
		memory.SecureZeroBytes(key)
		if err != nil {
			return nil, fmt.Errorf("key version %d: %w", m.Version, err)
		}
		aeads[m.Version] = aead
	}

	return &Cipher{aeads: aeads, current: current}, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return aead, nil
}

func (c *Cipher) CurrentKeyVersion() int {
	return c.current
}

func (c *Cipher) HasVersion(version int) bool {
	_, ok := c.aeads[version]
	return ok
}

// Versions returns the configured key versions in ascending order.
func (c *Cipher) Versions() []int {
	return sortedVersions(c.aeads)
}

// Encrypt seals plaintext under the current key version with a fresh nonce.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	return c.encryptWith(c.current, plaintext)
}

// Decrypt opens a ciphertext produced under keyVersion.
func (c *Cipher) Decrypt(ciphertext string, keyVersion int) ([]byte, error) {
	aead, ok := c.aeads[keyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: no key for version %d", app_errors.ErrCryptoFailure, keyVersion)
	}

	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext encoding", app_errors.ErrCryptoFailure)
	}

	nonceSize := aead.NonceSize()
	if len(blob) < nonceSize+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", app_errors.ErrCryptoFailure)
	}

	nonce, sealed := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed for key version %d", app_errors.ErrCryptoFailure, keyVersion)
	}
	return plaintext, nil
}

// Reencrypt moves a ciphertext from one key version to another. The
// intermediate plaintext never leaves this method and is zeroed before return.
func (c *Cipher) Reencrypt(ciphertext string, from, to int) (string, error) {
	if !c.HasVersion(to) {
		return "", fmt.Errorf("%w: no key for target version %d", app_errors.ErrCryptoFailure, to)
	}

	plaintext, err := c.Decrypt(ciphertext, from)
	if err != nil {
		return "", err
	}
	defer memory.SecureZeroBytes(plaintext)

	return c.encryptWith(to, plaintext)
}

func (c *Cipher) encryptWith(version int, plaintext []byte) (string, error) {
	aead, ok := c.aeads[version]
	if !ok {
		return "", fmt.Errorf("%w: no key for version %d", app_errors.ErrCryptoFailure, version)
	}

	nonce, err := generateNonce(aead.NonceSize())
	if err != nil {
		return "", fmt.Errorf("%w: %v", app_errors.ErrCryptoFailure, err)
	}

	blob := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(blob), nil
}

func generateNonce(size int) ([]byte, error) {
	nonce := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
