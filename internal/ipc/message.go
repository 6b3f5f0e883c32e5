// Package ipc implements the gob-framed transport carrying tasks to a
// worker process and results back to the main process, over the worker's
// stdin/stdout pipes. No object graphs cross this boundary, only tagged
// data, per the "no cross-process context references" design note.
package ipc

import (
	"encoding/gob"
	"time"

	"github.com/scribear/scribear/internal/audio"
)

func init() {
	// Task.Data and JobExecutionResult.Value travel as interface{}; gob
	// requires every concrete type that flows through an interface field
	// to be registered up front.
	gob.Register("")
	gob.Register([]string{})
	gob.Register([]float64{})
	gob.Register(map[string]any{})
	gob.Register(audio.Chunk{})
}

// TaskKind tags the variant of a Task.
type TaskKind int

const (
	TaskRegisterJob TaskKind = iota
	TaskDeregisterJob
	TaskQueueData
	TaskTerminate
)

// Task is sent from the main process down to a worker.
type Task struct {
	Kind TaskKind

	// RegisterJob
	JobID         uint64
	PeriodMs      int64
	ContextIDs    []string
	JobImplName   string // registry key resolved worker-side into a jobs.Implementation
	JobImplConfig []byte // opaque config handed to the worker-side factory for JobImplName

	// QueueData
	Data []any
}

// ResultKind tags the variant of a Result.
type ResultKind int

const (
	ResultInitializeWorker ResultKind = iota
	ResultLogging
	ResultStateChange
	ResultJobExecution
)

// LoggedRecord is a flattened slog.Record suitable for gob encoding (slog
// itself does not implement GobEncode).
type LoggedRecord struct {
	Level   int
	Time    time.Time
	Message string
	Attrs   map[string]string
}

// StateChange reports a worker scheduler transition for RollingUtilization
// accounting on the main side.
type StateChange struct {
	PrevState  int
	ElapsedNs  int64
}

// JobExecutionResult mirrors jobs.Result in a gob-safe shape (errors are
// not gob-registered types, so failures travel as plain strings plus an
// error-kind tag).
type JobExecutionResult struct {
	JobID     uint64
	Ok        bool
	Value     any
	ErrKind   int
	ErrMsg    string
	Stats     StatisticsWire
}

// StatisticsWire mirrors jobs.Statistics.
type StatisticsWire struct {
	PeriodStart  time.Time
	Scheduled    time.Time
	ExecuteStart time.Time
	Complete     time.Time
}

// Result is sent from a worker up to the main process.
type Result struct {
	Kind ResultKind

	Logged      *LoggedRecord
	State       *StateChange
	JobExec     *JobExecutionResult
	WorkerError string // non-empty on a failed INITIALIZE_WORKER
}
