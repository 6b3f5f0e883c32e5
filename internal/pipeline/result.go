package pipeline

import (
	"encoding/gob"

	"github.com/scribear/scribear/internal/stabilize"
)

func init() {
	gob.Register(Result{})
}

// Result is the {in_progress, final} pair returned by one invocation of
// the streaming pipeline. In-progress replaces prior in-progress; final
// appends to prior finals. Either may be absent.
type Result struct {
	InProgress *stabilize.Sequence
	Final      *stabilize.Sequence
}
