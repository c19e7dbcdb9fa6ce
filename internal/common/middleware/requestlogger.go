// Package middleware provides HTTP middleware for request logging, panic
// recovery, timeout handling, and cross-origin policy. It integrates with
// zerolog for structured logging and supports request tracing through
// unique request IDs.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/logtrace"
	"github.com/latticehq/lattice/internal/common/uuid"
)

// RequestIDHeader carries the request ID back to the client.
const RequestIDHeader = "X-Lattice-Request-ID"

// RequestLogger logs incoming requests and adds a unique request ID to both
// the request context and response headers. The request ID is used for
// request tracing.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := newRequestID()
		ctx = logtrace.WithRequestID(ctx, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)

		log.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newRequestID generates a unique request identifier, falling back to a
// timestamp-based ID if UUID generation fails.
func newRequestID() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
