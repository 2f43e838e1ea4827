package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/pumpwatch/internal/domain"
)

type contextKey string

const (
	ContextKeyUserID   contextKey = "user_id"
	ContextKeyUserRole contextKey = "role"
)

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(domain.Role)
	return v, ok
}

// ActorFromContext returns the authenticated caller stored by Auth.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	role, ok := RoleFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: role}, true
}

// WithActor stores actor the way Auth does.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, actor.ID)
	return context.WithValue(ctx, ContextKeyUserRole, actor.Role)
}
