package stabilize

import "strings"

// Segment is one piece of a decoder hypothesis: text spoken between
// StartSec and EndSec, both measured from stream start.
type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

// Sequence is the parallel-array wire shape used for TranscriptionResult's
// in_progress and final fields.
type Sequence struct {
	Text   []string
	Starts []float64
	Ends   []float64
}

// Empty reports whether the sequence carries no segments.
func (s Sequence) Empty() bool {
	return len(s.Text) == 0
}

func sequenceFrom(segs []Segment) Sequence {
	if len(segs) == 0 {
		return Sequence{}
	}
	seq := Sequence{
		Text:   make([]string, len(segs)),
		Starts: make([]float64, len(segs)),
		Ends:   make([]float64, len(segs)),
	}
	for i, s := range segs {
		seq.Text[i] = s.Text
		seq.Starts[i] = s.StartSec
		seq.Ends[i] = s.EndSec
	}
	return seq
}

// concatSequences appends b's entries after a's, in order.
func concatSequences(a, b Sequence) Sequence {
	return ConcatSequences(a, b)
}

// ConcatSequences appends b's entries after a's, in order. Exported for
// callers (e.g. the streaming pipeline) that merge a forced-finalization
// sequence with a subsequently agreed-upon one.
func ConcatSequences(a, b Sequence) Sequence {
	return Sequence{
		Text:   append(append([]string{}, a.Text...), b.Text...),
		Starts: append(append([]float64{}, a.Starts...), b.Starts...),
		Ends:   append(append([]float64{}, a.Ends...), b.Ends...),
	}
}

// sentenceEndSuffixes must be tested for the "..." exemption before the
// sentence-ending suffix check.
var sentenceEndSuffixes = []string{".", "?", "!"}

// endsSentence reports whether text ends a sentence: it ends with one of
// '.', '?', '!' but is not an ellipsis ("...").
func endsSentence(text string) bool {
	if strings.HasSuffix(text, "...") {
		return false
	}
	for _, suf := range sentenceEndSuffixes {
		if strings.HasSuffix(text, suf) {
			return true
		}
	}
	return false
}
