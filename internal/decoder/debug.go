package decoder

import (
	"fmt"
	"log/slog"
)

// DebugContext is a reference Context used by the "debug" provider and by
// tests: it does not run any model, it reports one word per call whose
// text encodes the sample count it was handed, spanning the whole input.
// Word-level timestamps are always present, honoring the "absence of
// word-level timestamps from the decoder is a fatal logic error"
// invariant by construction.
type DebugContext struct {
	SampleRate int
}

// NewDebugContext constructs a DebugContext for the given sample rate.
func NewDebugContext(sampleRate int) *DebugContext {
	return &DebugContext{SampleRate: sampleRate}
}

func (c *DebugContext) Transcribe(log *slog.Logger, samples []float32, opts Options) ([]Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	if !opts.WordTimestamps {
		return nil, fmt.Errorf("decoder: debug context requires word_timestamps=true")
	}

	durationSec := float64(len(samples)) / float64(c.SampleRate)
	return []Segment{
		{
			Words: []Word{
				{
					Text:     fmt.Sprintf("<%d samples>", len(samples)),
					StartSec: 0,
					EndSec:   durationSec,
				},
			},
		},
	}, nil
}
