package kms

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
)

const minMaterialLength = 32

// KeyMaterial is one configured key version.
type KeyMaterial struct {
	Version  int
	Material []byte
}

// KeyUnwrapper decrypts key material that is stored wrapped by an external KMS.
type KeyUnwrapper interface {
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// EncodedKey is key material as it appears in configuration.
type EncodedKey struct {
	Version    int
	Material   string // base64
	KMSWrapped bool
}

// DecodeKeyMaterial turns configured keys into raw key material, unwrapping
// any KMS-wrapped entries. unwrapper may be nil when no entry is wrapped.
func DecodeKeyMaterial(ctx context.Context, keys []EncodedKey, unwrapper KeyUnwrapper) ([]KeyMaterial, error) {
	out := make([]KeyMaterial, 0, len(keys))
	for _, k := range keys {
		raw, err := base64.StdEncoding.DecodeString(k.Material)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key material for version %d: %w", k.Version, err)
		}
		if k.KMSWrapped {
			if unwrapper == nil {
				return nil, fmt.Errorf("key version %d is kms wrapped but no unwrapper is configured", k.Version)
			}
			raw, err = unwrapper.Unwrap(ctx, raw)
			if err != nil {
				return nil, fmt.Errorf("failed to unwrap key version %d: %w", k.Version, err)
			}
		}
		out = append(out, KeyMaterial{Version: k.Version, Material: raw})
	}
	return out, nil
}

func validateKeyMaterial(current int, material []KeyMaterial) error {
	if len(material) == 0 {
		return fmt.Errorf("no key material configured")
	}

	seen := make(map[int]struct{}, len(material))
	for _, m := range material {
		if m.Version <= 0 {
			return fmt.Errorf("key version must be positive, got %d", m.Version)
		}
		if _, dup := seen[m.Version]; dup {
			return fmt.Errorf("key version %d configured more than once", m.Version)
		}
		if len(m.Material) < minMaterialLength {
			return fmt.Errorf("key version %d: material must be at least %d bytes, got %d", m.Version, minMaterialLength, len(m.Material))
		}
		seen[m.Version] = struct{}{}
	}

	if _, ok := seen[current]; !ok {
		return fmt.Errorf("current key version %d has no key material", current)
	}
	return nil
}

func sortedVersions[V any](m map[int]V) []int {
	versions := make([]int, 0, len(m))
	for v := range m {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}
