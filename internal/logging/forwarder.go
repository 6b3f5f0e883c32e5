package logging

import (
	"context"
	"log/slog"

	"github.com/scribear/scribear/internal/ipc"
)

// sender is the subset of *ipc.Transport a Forwarder needs.
type sender interface {
	SendResult(r ipc.Result) error
}

// forwardHandler is an slog.Handler that ships every record to the main
// process as a LOGGING result instead of writing to a stream, since a
// worker's stdout/stdin are owned by the IPC transport.
type forwardHandler struct {
	transport sender
	level     slog.Leveler
	attrs     []slog.Attr
}

// NewForwarder builds the worker-side logger. Every record becomes an
// ipc.Result{Kind: ResultLogging} sent over transport; the main process's
// WorkerManager.pump re-emits it through its own handler.
func NewForwarder(transport sender, level slog.Leveler) *slog.Logger {
	return slog.New(&forwardHandler{transport: transport, level: level})
}

func (h *forwardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *forwardHandler) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]string, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})

	return h.transport.SendResult(ipc.Result{
		Kind: ipc.ResultLogging,
		Logged: &ipc.LoggedRecord{
			Level:   int(rec.Level),
			Time:    rec.Time,
			Message: rec.Message,
			Attrs:   attrs,
		},
	})
}

func (h *forwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &forwardHandler{transport: h.transport, level: h.level}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *forwardHandler) WithGroup(_ string) slog.Handler {
	// Groups are flattened away; LoggedRecord.Attrs is a flat map and no
	// component in this pipeline nests slog groups.
	return h
}
