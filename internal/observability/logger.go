package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Records carry trace/span ids when a
// span is active on the context passed to the *Context logging methods.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler))
}
