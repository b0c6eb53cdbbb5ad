// Package requestctx carries per-request identity through contexts.
package requestctx

import "context"

// connectionIDContextKey is the context key for the host connection identity.
type connectionIDContextKey struct{}

// WithConnectionID stores a host connection identifier in context.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, connectionIDContextKey{}, connectionID)
}

// ConnectionIDFromContext returns the host connection identifier stored in context.
func ConnectionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(connectionIDContextKey{}).(string)
	return value
}
