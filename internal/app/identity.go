package app

import (
	"context"

	"exam-judge-service/internal/domain"
)

// IdentityContext resolves the user a request acts for. Authentication itself
// happens upstream.
type IdentityContext interface {
	CurrentUserID(ctx context.Context) (int64, error)
}

type userKey struct{}

// WithUser attaches an authenticated user ID to ctx.
func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user attached by WithUser.
func UserFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

// ContextIdentity reads the user from the request context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (int64, error) {
	id, ok := UserFromContext(ctx)
	if !ok {
		return 0, domain.ErrNoIdentity
	}
	return id, nil
}
