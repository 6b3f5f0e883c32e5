// Package logging sets up the process's slog logger: JSON by default,
// a pretty text handler under --dev, grounded on the teacher's
// slogReplaceAttr/io.MultiWriter main.go setup. Worker processes use
// Forwarder instead of writing to stdout/stderr directly, since the
// wire protocol owns those streams; the dispatcher process re-emits
// forwarded records through its own handler (§6, "no direct writes
// from workers").
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Options configures New.
type Options struct {
	Dev   bool
	Level slog.Level
}

// New builds the process-wide logger. Under Dev, it uses a pretty text
// handler with source locations; otherwise JSON, matching the
// "JSON for machine consumption, text for local dev" split found across
// the pack's main.go files (the teacher itself always uses text).
func New(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		AddSource:   true,
		Level:       opts.Level,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if opts.Dev {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}

	return slog.New(handler)
}

// replaceAttr trims source file paths to their package/file suffix,
// mirroring the teacher's slogReplaceAttr.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok && source.File != "" {
			source.File = filepath.Base(filepath.Dir(source.File)) + "/" + filepath.Base(source.File)
		}
	}
	return a
}

// ParseLevel converts the LOG_LEVEL env value into a slog.Level,
// defaulting to Info for unrecognized values.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
