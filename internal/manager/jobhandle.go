package manager

import (
	"sync"

	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
)

// JobHandle is the caller-facing event emitter for one registered job: it
// exposes QueueData and Deregister, both idempotent after deregistration,
// and a single-listener-per-event registration set for JobResult
// (grounded on spec §9's "single-listener registration set is sufficient
// since listeners run on the main loop").
type JobHandle struct {
	jobID      uint64
	manager    *WorkerManager
	contextIDs []string

	mu           sync.Mutex
	deregistered bool
	listeners    map[string]func(jobs.Result)
}

// OnResult registers the listener invoked for every JobResult this handle
// receives. Registering again under the same key replaces the previous
// listener.
func (h *JobHandle) OnResult(key string, fn func(jobs.Result)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[key] = fn
}

func (h *JobHandle) emit(result jobs.Result) {
	h.mu.Lock()
	listeners := make([]func(jobs.Result), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(result)
	}
}

// QueueData sends the given items as a QUEUE_DATA task. A no-op once
// deregistered, and a no-op for an empty list.
func (h *JobHandle) QueueData(items []any) error {
	if len(items) == 0 {
		return nil
	}
	h.mu.Lock()
	deregistered := h.deregistered
	h.mu.Unlock()
	if deregistered {
		return nil
	}
	return h.manager.transport.SendTask(ipc.Task{
		Kind:  ipc.TaskQueueData,
		JobID: h.jobID,
		Data:  items,
	})
}

// Deregister sends DEREGISTER_JOB and removes the handle from the
// manager's table. Idempotent: calling it twice is a no-op the second
// time.
func (h *JobHandle) Deregister() {
	h.mu.Lock()
	if h.deregistered {
		h.mu.Unlock()
		return
	}
	h.deregistered = true
	h.mu.Unlock()

	_ = h.manager.transport.SendTask(ipc.Task{Kind: ipc.TaskDeregisterJob, JobID: h.jobID})
	h.manager.deregisterHandle(h.jobID)
}
