package vad

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"
)

// SileroConfig configures the Silero-backed Detector.
type SileroConfig struct {
	ModelPath            string
	SampleRate           int
	WindowSize           int
	SpeechPadMs          int
	MinSilenceDurationMs int
}

// SileroDetector adapts github.com/streamer45/silero-vad-go's
// speech.Detector to the Detector interface. The detector keeps internal
// state across calls (onset/offset hysteresis), so DetectSpeechRanges
// calls Reset at the start of every call.
type SileroDetector struct {
	cfg SileroConfig
	det *speech.Detector
}

// NewSileroDetector loads the ONNX model at cfg.ModelPath.
func NewSileroDetector(cfg SileroConfig) (*SileroDetector, error) {
	det, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           cfg.SampleRate,
		WindowSize:           cfg.WindowSize,
		Threshold:            0.5, // fixed for the detector's lifetime
		SpeechPadMs:          cfg.SpeechPadMs,
		MinSilenceDurationMs: cfg.MinSilenceDurationMs,
	})
	if err != nil {
		return nil, fmt.Errorf("vad: failed to create silero detector: %w", err)
	}
	return &SileroDetector{cfg: cfg, det: det}, nil
}

// DetectSpeechRanges runs the Silero model over samples and converts its
// second-denominated segments into sample-index ranges. The library's
// Threshold is fixed at construction time; threshold/negThreshold here
// are ignored, matching the contract that the concrete model is opaque to
// the caller.
func (s *SileroDetector) DetectSpeechRanges(samples []float32, threshold float64, negThreshold *float64) ([]Range, error) {
	if err := s.det.Reset(); err != nil {
		return nil, fmt.Errorf("vad: failed to reset detector: %w", err)
	}

	segments, err := s.det.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("vad: detect failed: %w", err)
	}

	ranges := make([]Range, 0, len(segments))
	for _, seg := range segments {
		start := int(seg.SpeechStartAt * float64(s.cfg.SampleRate))
		end := start
		if seg.SpeechEndAt > 0 {
			end = int(seg.SpeechEndAt * float64(s.cfg.SampleRate))
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges, nil
}

// Destroy releases the underlying ONNX runtime session.
func (s *SileroDetector) Destroy() error {
	return s.det.Destroy()
}
