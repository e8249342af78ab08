package shared

import "context"

// Actor identifies who is performing an operation. Every mutating call is
// scoped to exactly one tenant; ActorID 0 means the system itself (webhooks,
// cron sweeps).
type Actor struct {
	TenantID    int64
	ActorID     int64
	CanOverride bool
}

// System returns the system actor for a tenant, used by webhook and batch paths.
func System(tenantID int64) Actor {
	return Actor{TenantID: tenantID}
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The second return value
// is false when no authentication middleware ran.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
