// Package jobs holds the data model shared between a worker's EDF
// scheduler and the main-process dispatcher: context specs, job specs,
// scheduler entries, and results.
package jobs

import (
	"encoding/json"
	"log/slog"
)

// ContextSpec describes a heavy pre-loaded resource (e.g. a speech model)
// that can be shared by multiple jobs inside one worker. Immutable after
// load.
type ContextSpec struct {
	UID              string
	MaxInstances     int // -1 means unlimited
	Tags             map[string]struct{}
	NegativeAffinity *string
	CreationCost     float64
	ContextConfig    json.RawMessage
}

// HasTag reports whether the spec carries tag.
func (s ContextSpec) HasTag(tag string) bool {
	_, ok := s.Tags[tag]
	return ok
}

// Unlimited reports whether MaxInstances places no cap.
func (s ContextSpec) Unlimited() bool {
	return s.MaxInstances == -1
}

// ContextFactory constructs and tears down one instance of a context
// described by a ContextSpec. Implementations are expected to be the
// in-worker counterpart of a ContextSpec's UID (e.g. a whisper model
// loader, a VAD model loader).
type ContextFactory interface {
	Create(log *slog.Logger, spec ContextSpec) (any, error)
	Destroy(log *slog.Logger, instance any) error
}

// Batch is the accumulated set of inputs queued to a job between two
// executions of its period.
type Batch []any

// Implementation is the user-supplied job body invoked by the worker's
// scheduler once its resolved contexts are available.
type Implementation interface {
	ProcessBatch(log *slog.Logger, contexts []any, batch Batch) (any, error)
}

// Spec describes a periodic job to be scheduled somewhere in the worker
// pool: its period, the context tags it needs, and its implementation.
type Spec struct {
	PeriodMs     int64
	RequiredTags []string
	JobImpl      Implementation
}
