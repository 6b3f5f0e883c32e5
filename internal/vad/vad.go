// Package vad wraps an external voice-activity detector to turn a
// sample buffer into the speech sample-ranges the streaming pipeline
// segments on before handing audio to the decoder.
package vad

// Range is an inclusive-exclusive pair of sample indices, [Start, End),
// identifying one contiguous speech region within a sample view.
type Range struct {
	Start int
	End   int
}

// Detector is the external VAD dependency contract (§6): given mono
// float32 samples and a pair of thresholds, it returns speech ranges.
// The concrete detector (e.g. a silero-vad-go speech.Detector) is
// injected; its internals are out of scope here.
type Detector interface {
	// DetectSpeechRanges returns inclusive-exclusive sample index pairs
	// where speech was detected. threshold is the detector's speech
	// probability cutoff; negThreshold, when non-nil, is a separate
	// (lower) cutoff used to end a speech segment. Implementations that
	// don't support a distinct negative threshold may ignore it.
	DetectSpeechRanges(samples []float32, threshold float64, negThreshold *float64) ([]Range, error)
}

// MinNegThreshold is floor applied to a derived negative threshold.
const MinNegThreshold = 0.01

// NegThresholdMargin is subtracted from threshold to derive the default
// negative threshold when the caller does not supply one.
const NegThresholdMargin = 0.15

// Driver is the VADDriver of §4.3: it calls the external Detector against
// the live view of a sample buffer, defaults and clamps the negative
// threshold, and sanitizes the returned ranges. On any detector failure,
// or on empty input, it returns an empty list rather than propagating
// the error — VAD failure degrades to "no speech found", not a job
// failure, since silence is always a safe segmentation fallback.
type Driver struct {
	detector Detector
}

// NewDriver wraps detector. detector may be nil, in which case
// DetectSpeechRanges always returns an empty list (useful for the
// vad_detector=false configuration of StreamingJob, which never calls
// into this type at all, and for tests).
func NewDriver(detector Detector) *Driver {
	return &Driver{detector: detector}
}

// Destroy releases the wrapped detector's resources, if it has any to
// release. A no-op for detectors that don't hold native resources.
func (d *Driver) Destroy() error {
	if d == nil || d.detector == nil {
		return nil
	}
	type destroyer interface{ Destroy() error }
	if dd, ok := d.detector.(destroyer); ok {
		return dd.Destroy()
	}
	return nil
}

// DetectSpeechRanges runs the wrapped detector against samples (the live
// view of a CircularSampleBuffer) and returns sanitized speech ranges.
func (d *Driver) DetectSpeechRanges(samples []float32, threshold float64, negThreshold *float64) []Range {
	if d == nil || d.detector == nil || len(samples) == 0 {
		return nil
	}

	neg := defaultNegThreshold(threshold, negThreshold)

	ranges, err := d.detector.DetectSpeechRanges(samples, threshold, &neg)
	if err != nil || len(ranges) == 0 {
		return nil
	}

	return sanitize(ranges, len(samples))
}

func defaultNegThreshold(threshold float64, negThreshold *float64) float64 {
	var neg float64
	if negThreshold != nil {
		neg = *negThreshold
	} else {
		neg = threshold - NegThresholdMargin
	}
	if neg < MinNegThreshold {
		neg = MinNegThreshold
	}
	if neg >= threshold {
		// Clamp strictly below threshold so neg < threshold always holds,
		// even for degenerate (very low) thresholds.
		neg = threshold - 1e-6
	}
	return neg
}

func sanitize(ranges []Range, length int) []Range {
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		start, end := r.Start, r.End
		if start < 0 {
			start = 0
		}
		if end > length {
			end = length
		}
		if end > start {
			out = append(out, Range{Start: start, End: end})
		}
	}
	return out
}
