package middleware

import (
	"log/slog"
	"net/http"

	"github.com/veldtman/grind-api/internal/api/shared"
	"github.com/veldtman/grind-api/internal/platform/logger"
)

// Trace attaches a trace ID to the request context and stores a
// request-scoped logger carrying it, so every downstream log line for this
// request can be correlated.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		log := slog.With(slog.String("trace_id", traceID))
		ctx = logger.WithLogger(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
