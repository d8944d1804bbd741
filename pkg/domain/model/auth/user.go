package auth

import (
	"context"
	"time"
)

// User is an authenticated actor as asserted by the identity provider
type User struct {
	Sub       string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// IsExpired reports whether the credential behind the user has expired.
// A zero ExpiresAt never expires.
func (x *User) IsExpired() bool {
	return !x.ExpiresAt.IsZero() && time.Now().After(x.ExpiresAt)
}

type ctxUserKey struct{}

// ContextWithUser returns a context carrying the authenticated user
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(ctxUserKey{}).(*User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
