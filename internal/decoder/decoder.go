// Package decoder defines the whisper-style speech decoder contract (spec
// §6). The concrete model is an opaque external dependency; this package
// only fixes the Go-shaped interface and a debug/reference implementation
// used in tests and the "debug" provider.
package decoder

import "log/slog"

// Word is one word-level timestamp produced by the decoder, relative to
// the start of the input buffer.
type Word struct {
	Text     string
	StartSec float64
	EndSec   float64
}

// Options mirrors whisper_ctx.transcribe's parameter surface.
type Options struct {
	InitialPrompt                 string
	WordTimestamps                bool
	VADFilter                     bool
	Language                      string
	Multilingual                  bool
	HallucinationSilenceThreshold float64
}

// Segment is one decoder hypothesis segment, carrying its constituent
// words.
type Segment struct {
	Words []Word
}

// Context is the in-worker decoder instance contract. Both implementations
// fail from Transcribe when Options.WordTimestamps is false; their errors
// carry no errs.Kind, so the pipeline surfaces them as plain job failures.
type Context interface {
	Transcribe(log *slog.Logger, samples []float32, opts Options) ([]Segment, error)
}
