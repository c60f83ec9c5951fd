package resource

import "context"

// Resolver answers containment questions about resources.
//
// NearestAncestorOfType walks upward from the parent of id and returns the
// first ancestor whose type is t; id itself never matches. It fails with a
// not-found error when id or a required ancestor does not exist, and with a
// permission-denied error when the caller in ctx cannot see id.
type Resolver interface {
	NearestAncestorOfType(ctx context.Context, id ID, t Type) (ID, error)
}

var _ Resolver = (*Store)(nil)
