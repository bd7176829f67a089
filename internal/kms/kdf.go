package kms

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey uses HKDF to derive a purpose-bound key from configured key material.
func DeriveKey(masterKey, salt, info []byte, keyLength int) ([]byte, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("master key cannot be empty")
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("salt cannot be empty")
	}

	kdf := hkdf.New(sha256.New, masterKey, salt, info)

	key := make([]byte, keyLength)
	if _, err := kdf.Read(key); err != nil {
		return nil, fmt.Errorf("failed to derive key using HKDF: %w", err)
	}

	return key, nil
}

func descriptorSalt(version int) []byte {
	return []byte(fmt.Sprintf("parishvault-descriptor:v%d", version))
}

var descriptorInfo = []byte("tenant-connection-descriptor")
