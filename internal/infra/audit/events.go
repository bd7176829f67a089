package audit

import "context"

type actorKey struct{}

// WithActor tags ctx with who is acting: an operator command, the server
// startup sweep or an admin request.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}
