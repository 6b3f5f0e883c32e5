package decoder

import (
	"io"
	"log/slog"
	"testing"
)

func TestDebugContextEmptyInput(t *testing.T) {
	c := NewDebugContext(16000)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	segs, err := c.Transcribe(log, nil, Options{WordTimestamps: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if segs != nil {
		t.Fatalf("expected nil segments for empty input, got %v", segs)
	}
}

func TestDebugContextRequiresWordTimestamps(t *testing.T) {
	c := NewDebugContext(16000)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := c.Transcribe(log, make([]float32, 100), Options{WordTimestamps: false}); err == nil {
		t.Fatal("expected error when word_timestamps is false")
	}
}

func TestDebugContextProducesTimedWord(t *testing.T) {
	c := NewDebugContext(16000)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	segs, err := c.Transcribe(log, make([]float32, 16000), Options{WordTimestamps: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || len(segs[0].Words) != 1 {
		t.Fatalf("expected one segment with one word, got %+v", segs)
	}
	w := segs[0].Words[0]
	if w.StartSec != 0 || w.EndSec != 1 {
		t.Fatalf("expected word spanning [0,1), got [%v,%v)", w.StartSec, w.EndSec)
	}
}
