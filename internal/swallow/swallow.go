// Package swallow implements the "log and degrade" policy applied at store boundaries:
// a failing operation is logged and replaced by a fallback value instead of being propagated.
package swallow

import (
	"context"
	"log/slog"
)

// Value runs fn and returns its result. If fn fails, the error is logged at error level
// together with attrs and fallback is returned.
func Value[T any](ctx context.Context, logger *slog.Logger, msg string, fallback T, fn func() (T, error), attrs ...any) T {
	v, err := fn()
	if err != nil {
		logger.ErrorContext(ctx, msg, withError(attrs, err)...)
		return fallback
	}
	return v
}

// Do runs fn and reports whether it succeeded. Failures are logged.
func Do(ctx context.Context, logger *slog.Logger, msg string, fn func() error, attrs ...any) bool {
	if err := fn(); err != nil {
		logger.ErrorContext(ctx, msg, withError(attrs, err)...)
		return false
	}
	return true
}

func withError(attrs []any, err error) []any {
	out := make([]any, 0, len(attrs)+2)
	out = append(out, attrs...)
	return append(out, "error", err)
}
