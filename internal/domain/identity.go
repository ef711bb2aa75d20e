package domain

import "context"

// Identity is what the session resolver attaches to a request.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// IdentityOf builds the identity of a resolved user.
func IdentityOf(u *User) *Identity {
	return &Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

type identityKey struct{}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Authorize is the role gate. A nil identity is unauthenticated (401);
// a role outside allowed is forbidden (403). Admins get no implicit bypass.
func Authorize(id *Identity, allowed ...Role) error {
	if id == nil {
		return ErrUnauthenticated
	}
	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
