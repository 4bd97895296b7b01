package domain

import "context"

// Identity is the caller resolved for a single request. It lives only as long as the request.
type Identity struct {
	UserID     string
	Email      string
	FullName   string
	Role       Role
	EmployeeID string
	Department string
}

// IdentityFromProfile builds the request identity for p.
func IdentityFromProfile(p Profile) Identity {
	return Identity{
		UserID:     p.ID,
		Email:      p.Email,
		FullName:   p.FullName(),
		Role:       p.EffectiveRole(),
		EmployeeID: p.EmployeeID,
		Department: p.Department,
	}
}

// HasRole reports whether the identity holds any of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

type identityKey struct{}

// ContextWithIdentity attaches id to ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached to ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
