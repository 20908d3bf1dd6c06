package authz

import "context"

type actorContextKey struct{}

// ContextWithActor attaches the resolved auth context to the request context.
func ContextWithActor(ctx context.Context, actor *AuthContext) context.Context {
	if actor == nil {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the resolved auth context, if any.
func ActorFromContext(ctx context.Context) (*AuthContext, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*AuthContext)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
