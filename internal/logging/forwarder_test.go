package logging

import (
	"log/slog"
	"testing"

	"github.com/scribear/scribear/internal/ipc"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	results []ipc.Result
}

func (s *recordingSender) SendResult(r ipc.Result) error {
	s.results = append(s.results, r)
	return nil
}

func TestForwarderSendsLoggedRecord(t *testing.T) {
	sender := &recordingSender{}
	log := NewForwarder(sender, slog.LevelInfo)

	log.With("worker_id", "w1").Info("hello", slog.String("job", "j1"))

	require.Len(t, sender.results, 1)
	res := sender.results[0]
	require.Equal(t, ipc.ResultLogging, res.Kind)
	require.NotNil(t, res.Logged)
	require.Equal(t, "hello", res.Logged.Message)
	require.Equal(t, "w1", res.Logged.Attrs["worker_id"])
	require.Equal(t, "j1", res.Logged.Attrs["job"])
}

func TestForwarderRespectsLevel(t *testing.T) {
	sender := &recordingSender{}
	log := NewForwarder(sender, slog.LevelWarn)

	log.Info("should be dropped")
	require.Empty(t, sender.results)

	log.Warn("should pass")
	require.Len(t, sender.results, 1)
}
