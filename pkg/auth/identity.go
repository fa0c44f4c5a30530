package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// HasRole reports whether the caller holds one of roles.
func (i *Identity) HasRole(roles ...models.Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the caller may act on behalf of other users.
func (i *Identity) IsStaff() bool {
	return i.HasRole(models.RoleAdmin, models.RoleClerk)
}

// CanView reports whether the caller may read data owned by userID.
func (i *Identity) CanView(userID uuid.UUID) bool {
	return i != nil && (i.UserID == userID || i.IsStaff())
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
