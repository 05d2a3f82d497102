package logging

import (
	"context"
	"log/slog"
)

type ctxLogger struct{}

// WithContext stores the request-scoped logger.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLogger{}, log)
}

// FromContext falls back to slog.Default outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLogger{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Enrich adds attrs to the logger in ctx and stores the result back.
func Enrich(ctx context.Context, attrs ...slog.Attr) (context.Context, *slog.Logger) {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	l := FromContext(ctx).With(args...)
	return WithContext(ctx, l), l
}
