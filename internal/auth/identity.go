package auth

import (
	"context"

	"github.com/google/uuid"

	"pastebox/internal/domain"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Email    string
	Role     domain.Role
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequesterID returns the caller's id, or uuid.Nil for anonymous requests.
func RequesterID(ctx context.Context) uuid.UUID {
	if id, ok := GetIdentity(ctx); ok {
		return id.UserID
	}
	return uuid.Nil
}
