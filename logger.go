package display

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from the render thread.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for display and all its sub-packages.
// By default, display produces no log output.
//
// Pass nil to restore the default silent behavior.
//
// Log levels used by display:
//   - [slog.LevelDebug]: target allocation, back-buffer rotation
//   - [slog.LevelInfo]: lifecycle events (context created, swap chain resized, output selected)
//   - [slog.LevelWarn]: degraded paths (fallback output, skipped pass)
//   - [slog.LevelError]: validator errors and failed assertions
//
// Example:
//
//	display.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by display.
// Backend packages call this to share the same configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ValidatorError reports a non-fatal platform integration problem on the
// validator channel. The caller is expected to continue on a fallback path.
func ValidatorError(msg string, args ...any) {
	Logger().Error(msg, append([]any{"validator", true}, args...)...)
}
