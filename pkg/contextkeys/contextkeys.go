// Package contextkeys provides centralized context key definitions.
//
// Keys shared across packages live here so the packages that set them
// and the packages that read them need not import each other.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Context
	// Set by: auth.Middleware (pkg/auth/middleware.go)
	// Required by: permission guards, all protected API endpoints
	AuthKey Key = "auth_context"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}
