package logtrace

import (
	"context"
	"os"
)

type requestIDContextKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or carries no request ID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIDContextKey{}).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether route tracing is enabled via the
// LATTICE_TRACE environment variable.
func IsTraceEnabled() bool {
	return os.Getenv("LATTICE_TRACE") != ""
}
