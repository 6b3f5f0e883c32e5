package stabilize

import "fmt"

// LocalAgree implements the "local agreement with dimension d" heuristic:
// a segment is committed once the leading segment of the d most recent
// hypotheses agree on its text. It is the stabilizer that turns the
// decoder's unstable, repeated hypotheses into a committed word stream.
//
// Not safe for concurrent use: one instance belongs to one StreamingJob.
type LocalAgree struct {
	d int

	committed     []Segment   // stable prefix, not yet consumed by the caller
	inProgress    [][]Segment // last d hypotheses, newest last
	committedTime float64
}

// NewLocalAgree constructs a stabilizer requiring agreement across d
// hypotheses. Panics-equivalent: returns an error if d < 1, since a
// misconfigured dimension can never commit anything.
func NewLocalAgree(d int) (*LocalAgree, error) {
	if d < 1 {
		return nil, fmt.Errorf("stabilize: dimension d must be >= 1, got %d", d)
	}
	return &LocalAgree{d: d}, nil
}

// AppendTranscription admits a fresh hypothesis (the decoder's complete
// transcript for the current buffer contents). Segments whose start
// precedes the already-committed timeline are dropped first, since they
// can never be new information. Once d hypotheses have accumulated, any
// leading segments they all agree on (text equality) are promoted to the
// committed timeline.
func (la *LocalAgree) AppendTranscription(segments []Segment) {
	hypothesis := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.StartSec < la.committedTime {
			continue
		}
		hypothesis = append(hypothesis, seg)
	}

	la.inProgress = append(la.inProgress, hypothesis)
	if len(la.inProgress) > la.d {
		la.inProgress = la.inProgress[1:]
	}

	if len(la.inProgress) < la.d {
		return
	}

	for {
		if len(la.inProgress[0]) == 0 {
			break
		}
		head := la.inProgress[0][0].Text
		agree := true
		for _, hyp := range la.inProgress[1:] {
			if len(hyp) == 0 || hyp[0].Text != head {
				agree = false
				break
			}
		}
		if !agree {
			break
		}

		committedSeg := la.inProgress[len(la.inProgress)-1][0]
		for i := range la.inProgress {
			la.inProgress[i] = la.inProgress[i][1:]
		}
		la.committed = append(la.committed, committedSeg)
		la.committedTime = committedSeg.EndSec
	}
}

// PopFinalized walks the committed deque, accumulating a run up to and
// including the first sentence-ending segment. If such a run exists it is
// removed from committed and returned; otherwise it returns (Sequence{},
// false) and leaves committed untouched.
func (la *LocalAgree) PopFinalized() (Sequence, bool) {
	cut := -1
	for i, seg := range la.committed {
		if endsSentence(seg.Text) {
			cut = i
			break
		}
	}
	if cut == -1 {
		return Sequence{}, false
	}

	run := la.committed[:cut+1]
	seq := sequenceFrom(run)
	la.committed = la.committed[cut+1:]
	return seq, true
}

// GetInProgress returns committed concatenated with the newest hypothesis,
// or (Sequence{}, false) if there is nothing at all to report.
func (la *LocalAgree) GetInProgress() (Sequence, bool) {
	var newest []Segment
	if len(la.inProgress) > 0 {
		newest = la.inProgress[len(la.inProgress)-1]
	}
	if len(la.committed) == 0 && len(newest) == 0 {
		return Sequence{}, false
	}
	return concatSequences(sequenceFrom(la.committed), sequenceFrom(newest)), true
}

// ForceFinalized commits everything up to endTime regardless of
// agreement, used by the StreamingJob when buffer overflow forces a cut.
// It pops from committed, then from the newest hypothesis (merging the
// two), then silently drops matching segments from every older
// hypothesis — they can no longer contribute to agreement since the
// timeline has moved past them.
func (la *LocalAgree) ForceFinalized(endTime float64) (Sequence, bool) {
	var popped []Segment

	popped, la.committed = popWhileBefore(la.committed, endTime)

	if len(la.inProgress) > 0 {
		newest := len(la.inProgress) - 1
		var fromNewest []Segment
		fromNewest, la.inProgress[newest] = popWhileBefore(la.inProgress[newest], endTime)
		popped = append(popped, fromNewest...)

		for i := 0; i < newest; i++ {
			_, la.inProgress[i] = popWhileBefore(la.inProgress[i], endTime)
		}
	}

	if len(popped) == 0 {
		return Sequence{}, false
	}
	if len(popped) > 0 {
		la.committedTime = max(la.committedTime, popped[len(popped)-1].EndSec)
	}
	return sequenceFrom(popped), true
}

// popWhileBefore removes and returns the leading run of segs whose start
// precedes endTime (segs is assumed sorted ascending by start, which
// holds for both committed and any single hypothesis).
func popWhileBefore(segs []Segment, endTime float64) (popped, rest []Segment) {
	i := 0
	for i < len(segs) && segs[i].StartSec < endTime {
		i++
	}
	return segs[:i], segs[i:]
}
