// Package contextkeys provides typed context keys shared across packages,
// avoiding import cycles between middleware, identity, and observability.
package contextkeys

import "context"

type contextKey string

const (
	// PrincipalKey holds the authenticated *auth.Principal
	PrincipalKey contextKey = "principal"
	// IdentityKey holds the resolved *identity.ResolvedIdentity
	IdentityKey contextKey = "identity"
	// RequestIDKey holds the request correlation ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey holds the authenticated user's ID
	UserIDKey contextKey = "user_id"
	// LoggerKey holds a request-scoped logger
	LoggerKey contextKey = "logger"
)

// WithPrincipal stores the authenticated principal in the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithIdentity stores the resolved identity in the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithRequestID stores the request correlation ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID stores the user ID in the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger stores a request-scoped logger in the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves the request correlation ID from the context
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok
}

// GetUserID retrieves the user ID from the context
func GetUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}
