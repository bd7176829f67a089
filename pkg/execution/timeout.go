package execution

import (
	"context"
	"time"
)

// WithTimeout runs fn with a derived deadline. A non-positive timeout runs fn
// with ctx unchanged. fn is expected to honor cancellation.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
