package auth

import (
	"context"

	"authguard/internal/rbac"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id rbac.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity a guard resolved for this request, if any.
func IdentityFrom(ctx context.Context) (rbac.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(rbac.Identity)
	if !ok || id.ID <= 0 {
		return rbac.Identity{}, false
	}
	return id, true
}
