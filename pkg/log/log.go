package log

import (
	"context"
	"log/slog"
	"os"
)

var (
	defaultLogLevel slog.LevelVar
	defaultLogger   = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &defaultLogLevel,
	}))
)

func init() {
	defaultLogLevel.Set(slog.LevelInfo)
}

type contextKey struct{}

var loggerKey = contextKey{}

// Ctx returns the logger from the context. If no logger is found, it returns the default logger.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a new context with the given logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithThing returns a new context whose logger carries the redacted thing key
// of the device being worked on.
func WithThing(ctx context.Context, thingKey string) context.Context {
	return With(ctx, Ctx(ctx).With(slog.String("thing", Redact(thingKey))))
}

// Redact hides all but the first and last three characters of a device
// identifier so it can be logged. Short identifiers are fully masked.
func Redact(s string) string {
	if len(s) <= 6 {
		return "*****"
	}
	return s[:3] + "*****" + s[len(s)-3:]
}

func SetDefaultLogLevel(level slog.Level) {
	defaultLogLevel.Set(level)
}
