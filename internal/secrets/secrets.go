package secrets

import (
	"context"
	"fmt"
	"strings"
)

// RefPrefix marks a configuration value that names a secret instead of
// holding it.
const RefPrefix = "ssm:"

// Source is an interface for retrieving bootstrap secrets.
type Source interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Expand replaces every referenced value in place with the secret it names.
// Plain values are left untouched. A nil source is only an error when a
// reference is actually present.
func Expand(ctx context.Context, src Source, values ...*string) error {
	for _, v := range values {
		if v == nil || !IsRef(*v) {
			continue
		}
		name := strings.TrimPrefix(*v, RefPrefix)
		if src == nil {
			return fmt.Errorf("secret %q referenced but no secret source is configured", name)
		}

		secret, err := src.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to resolve secret %q: %w", name, err)
		}
		*v = secret
	}
	return nil
}

// HasRefs reports whether any value needs a secret source.
func HasRefs(values ...*string) bool {
	for _, v := range values {
		if v != nil && IsRef(*v) {
			return true
		}
	}
	return false
}
