// Package manager implements the main-process side of a worker: process
// lifecycle, the IPC result pump, and JobHandle event emission. Grounded
// on the teacher's Transcriber errCh/doneCh/doneOnce shutdown shape and
// its handleTranscriptionRequests select-loop idiom.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scribear/scribear/internal/errs"
	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/utilization"
)

// Spawner starts a worker process and returns the transport wired to its
// stdin/stdout, plus a function to wait for it to exit.
type Spawner func() (transport *ipc.Transport, wait func() error, err error)

// WorkerManager owns one worker process: it spawns it, pumps its result
// stream, and exposes job registration to the dispatcher.
type WorkerManager struct {
	id        string
	log       *slog.Logger
	transport *ipc.Transport
	wait      func() error

	mu          sync.Mutex
	utilization *utilization.RollingUtilization
	handles     map[uint64]*JobHandle
	nextJobID   uint64

	doneCh   chan struct{}
	doneOnce sync.Once
	pumpErr  error
}

// New spawns a worker via spawn and blocks until its INITIALIZE_WORKER
// result arrives (or the attempt fails).
func New(id string, log *slog.Logger, window time.Duration, spawn Spawner) (*WorkerManager, error) {
	transport, wait, err := spawn()
	if err != nil {
		return nil, fmt.Errorf("manager: failed to spawn worker %s: %w", id, err)
	}

	m := &WorkerManager{
		id:          id,
		log:         log,
		transport:   transport,
		wait:        wait,
		utilization: utilization.NewRollingUtilization(window),
		handles:     make(map[uint64]*JobHandle),
		doneCh:      make(chan struct{}),
	}

	init, err := transport.RecvResult()
	if err != nil {
		return nil, fmt.Errorf("manager: worker %s failed to initialize: %w", id, err)
	}
	if init.Kind != ipc.ResultInitializeWorker {
		return nil, fmt.Errorf("manager: worker %s sent unexpected first result kind %d", id, init.Kind)
	}
	if init.WorkerError != "" {
		return nil, fmt.Errorf("manager: worker %s failed to initialize: %s", id, init.WorkerError)
	}

	go m.pump()

	return m, nil
}

// ID returns the worker's identifier, used by the dispatcher for score
// tie-breaking.
func (m *WorkerManager) ID() string { return m.id }

// Utilization returns the worker's current rolling utilization.
func (m *WorkerManager) Utilization() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.utilization.Utilization()
}

// ActiveContextIDs returns the union of context_ids over all registered
// handles on this worker.
func (m *WorkerManager) ActiveContextIDs() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make(map[string]struct{})
	for _, h := range m.handles {
		for _, id := range h.contextIDs {
			active[id] = struct{}{}
		}
	}
	return active
}

// RegisterJob sends REGISTER_JOB to the worker and returns a JobHandle the
// caller can listen on and queue data through.
func (m *WorkerManager) RegisterJob(contextIDs []string, periodMs int64, jobImplName string, jobImplConfig []byte) (*JobHandle, error) {
	m.mu.Lock()
	jobID := m.nextJobID
	m.nextJobID++
	handle := &JobHandle{
		jobID:      jobID,
		manager:    m,
		contextIDs: contextIDs,
		listeners:  make(map[string]func(jobs.Result)),
	}
	m.handles[jobID] = handle
	m.mu.Unlock()

	if err := m.transport.SendTask(ipc.Task{
		Kind:          ipc.TaskRegisterJob,
		JobID:         jobID,
		PeriodMs:      periodMs,
		ContextIDs:    contextIDs,
		JobImplName:   jobImplName,
		JobImplConfig: jobImplConfig,
	}); err != nil {
		m.mu.Lock()
		delete(m.handles, jobID)
		m.mu.Unlock()
		return nil, fmt.Errorf("manager: failed to send register_job: %w", err)
	}

	return handle, nil
}

func (m *WorkerManager) deregisterHandle(jobID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, jobID)
}

// SendTerminate sends TERMINATE to the worker.
func (m *WorkerManager) SendTerminate() error {
	return m.transport.SendTask(ipc.Task{Kind: ipc.TaskTerminate})
}

// WaitShutdown joins the worker process after the pump has finished.
func (m *WorkerManager) WaitShutdown() error {
	<-m.doneCh
	if m.wait != nil {
		if err := m.wait(); err != nil {
			return err
		}
	}
	return m.pumpErr
}

// pump is the asynchronous result-fanout loop: one goroutine per worker,
// reading results until the transport closes.
func (m *WorkerManager) pump() {
	defer m.doneOnce.Do(func() { close(m.doneCh) })

	for {
		res, err := m.transport.RecvResult()
		if err != nil {
			m.pumpErr = err
			return
		}

		switch res.Kind {
		case ipc.ResultLogging:
			m.forwardLog(res.Logged)
		case ipc.ResultStateChange:
			m.mu.Lock()
			m.utilization.Increment(utilization.State(res.State.PrevState), res.State.ElapsedNs)
			m.mu.Unlock()
		case ipc.ResultJobExecution:
			m.dispatchJobResult(res.JobExec)
		}
	}
}

func (m *WorkerManager) forwardLog(rec *ipc.LoggedRecord) {
	if rec == nil {
		return
	}
	args := make([]any, 0, len(rec.Attrs)*2)
	for k, v := range rec.Attrs {
		args = append(args, k, v)
	}
	m.log.Log(context.Background(), slog.Level(rec.Level), rec.Message, args...)
}

func (m *WorkerManager) dispatchJobResult(exec *ipc.JobExecutionResult) {
	if exec == nil {
		return
	}
	m.mu.Lock()
	handle, ok := m.handles[exec.JobID]
	m.mu.Unlock()
	if !ok {
		return
	}

	var result jobs.Result
	if exec.Ok {
		result = jobs.Success(exec.JobID, exec.Value, statsFromWire(exec.Stats))
	} else {
		err := errs.New(errs.Kind(exec.ErrKind), errors.New(exec.ErrMsg))
		result = jobs.Failure(exec.JobID, err, statsFromWire(exec.Stats))
	}

	handle.emit(result)

	if !exec.Ok {
		handle.Deregister()
	}
}

func statsFromWire(w ipc.StatisticsWire) jobs.Statistics {
	return jobs.Statistics{
		PeriodStart:  w.PeriodStart,
		Scheduled:    w.Scheduled,
		ExecuteStart: w.ExecuteStart,
		Complete:     w.Complete,
	}
}
