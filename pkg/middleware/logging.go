package middleware

import (
	"livesync/pkg/logging"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger creates a middleware that logs requests and injects the logger.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			// child logger with request details
			reqLog := log.With(
				logging.RequestID(requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				reqLog = reqLog.With(logging.TraceID(sc.TraceID().String()))
			}
			ctx := logging.WithContext(r.Context(), reqLog)
			w.Header().Set("X-Request-ID", requestID)
			reqLog.Info("request started")
			wrapped := wrap(w)
			inner := r.WithContext(ctx)
			next.ServeHTTP(wrapped, inner)
			// ServeMux sets Pattern on the request it was given; hand it back out.
			r.Pattern = inner.Pattern
			reqLog.Info("request finished", "route", inner.Pattern, "status", wrapped.statusCode, "duration", time.Since(start))
		})
	}
}
