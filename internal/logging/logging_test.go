package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("info"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNewReturnsUsableLogger(t *testing.T) {
	log := New(Options{Dev: true, Level: slog.LevelDebug})
	require.NotNil(t, log)

	log = New(Options{Dev: false, Level: slog.LevelInfo})
	require.NotNil(t, log)
}
