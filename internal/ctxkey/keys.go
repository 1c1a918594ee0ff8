// Package ctxkey holds shared context key types so adapters and services
// can exchange per-request values without import cycles.
package ctxkey

import (
	"context"
	"log/slog"
)

// LoggerKey is the context key type for the request-enriched logger.
type LoggerKey struct{}

// RequestIDKey is the context key type for the request ID.
type RequestIDKey struct{}

// RequestIDFromContext returns the request ID stored in the context, or an
// empty string when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey{}).(string)
	return id
}

// LoggerFromContext returns the enriched logger stored in the context, or
// slog.Default() when absent.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
