package log

import (
	"context"

	"github.com/rs/zerolog"
)

// ctxKey is unexported so only this package can attach loggers.
type ctxKey struct{}

// WithLogger returns a child context carrying the given logger,
// typically one enriched with request-scoped fields.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx returns the logger carried by ctx, falling back to the
// process-wide logger when none was attached.
func Ctx(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return L()
}
