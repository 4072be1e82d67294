// Package logctx carries a zerolog.Logger through context.Context.
//
// The CLI attaches a configured logger once:
//
//	ctx = logctx.WithLogger(ctx, logging.WithPhase("count"))
//
// and library code pulls it back out with FromContext. Code reached without
// an attached logger logs nowhere, so packages such as rowcount stay silent
// when embedded in other programs.
package logctx

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached to ctx, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return zerolog.Nop()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithStr returns a copy of ctx whose logger has the string field key=value.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}
