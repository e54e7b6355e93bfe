package middleware

import (
	"log/slog"
	"net/http"

	"github.com/storyreel/storyreel/internal/api/shared"
)

// NewTraceMiddleware returns a middleware that adds a trace ID to the request
// context and logs the incoming request through the given logger. It should
// be applied early in the middleware chain to ensure that all subsequent
// handlers have access to the trace ID.
func NewTraceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := logger.With(slog.String("trace_id", traceID))
			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TraceMiddleware adds a trace ID to the request context, logging through
// the process default logger.
func TraceMiddleware(next http.Handler) http.Handler {
	return NewTraceMiddleware(slog.Default())(next)
}
