package shared

import (
	"context"
	"strings"
)

type userContextKey struct{}

// ContextWithUser stores the authenticated tenant id in context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, strings.TrimSpace(userID))
}

// UserFromContext extracts the tenant id, or "" when absent.
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userContextKey{}).(string)
	return userID
}
