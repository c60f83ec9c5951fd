package resource

import "context"

// Principal identifies the caller a lookup is performed for.
type Principal string

type principalKey struct{}

// WithPrincipal returns a context carrying the caller principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller principal. A context without one belongs
// to a system caller.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p == "" {
		return "", false
	}
	return p, true
}
