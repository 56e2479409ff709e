// internal/domain/cart/context.go
package cart

import "context"

type userIDKey struct{}

// ContextWithUserID attaches the acting user to ctx. Events published by
// operations called with this context carry the id.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the acting user, or "" for guests
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
