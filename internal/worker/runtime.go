// Package worker implements the EDF scheduler that runs inside a single
// isolated worker process: it multiplexes many periodic jobs over one
// cooperative execution thread, lazily resolving the heavy contexts they
// share.
package worker

import (
	"log/slog"
	"sort"
	"time"

	"github.com/scribear/scribear/internal/errs"
	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/utilization"
)

// entry is the in-memory JobEntry described in spec §3.
type entry struct {
	jobID         uint64
	state         jobs.State
	periodMs      int64
	periodStartNs int64
	contextIDs    []string
	pendingBatch  jobs.Batch
	jobImpl       jobs.Implementation
}

// Clock abstracts time access so tests can drive the scheduler
// deterministically without real sleeps.
type Clock interface {
	NowNs() int64
}

type realClock struct{}

func (realClock) NowNs() int64 { return time.Now().UnixNano() }

// ImplFactory builds the jobs.Implementation for a REGISTER_JOB task,
// keyed by the name the dispatcher tagged it with and given that task's
// opaque config payload. Each call must return a fresh instance: a
// job_impl owns private state (e.g. a StreamingJob's buffer) that must
// not be shared across registrations.
type ImplFactory func(name string, config []byte) (jobs.Implementation, error)

// Runtime is the worker-process main loop: task intake, context
// lifecycle, and EDF job scheduling.
type Runtime struct {
	log         *slog.Logger
	transport   *ipc.Transport
	contexts    *jobs.ContextTable
	clock       Clock
	implFactory ImplFactory

	entries map[uint64]*entry
	state   utilization.State

	exit bool
}

// NewRuntime constructs a worker runtime. transport is the IPC connection
// back to the main process; contexts resolves context ids to instances;
// implFactory builds job_impl instances for incoming REGISTER_JOB tasks.
func NewRuntime(log *slog.Logger, transport *ipc.Transport, contexts *jobs.ContextTable, implFactory ImplFactory) *Runtime {
	return &Runtime{
		log:         log,
		transport:   transport,
		contexts:    contexts,
		clock:       realClock{},
		implFactory: implFactory,
		entries:     make(map[uint64]*entry),
		state:       utilization.StateAdmin,
	}
}

// resolverFunc resolves a context id to an instance; separated so the
// scheduling pass doesn't need to import decoder/vad concrete types.
type resolverFunc func(contextID string) (any, error)

// Run drives the main loop until TERMINATE is received or the task stream
// closes. taskCh is fed by a goroutine pumping transport.RecvTask, so a
// blocking receive with timeout can be implemented via select.
func (r *Runtime) Run(taskCh <-chan ipc.Task, resolve resolverFunc) {
	lastTransition := r.clock.NowNs()

	for {
		// 1. ADMIN: drain non-blocking.
		r.transitionTo(utilization.StateAdmin, &lastTransition)
		r.drainNonBlocking(taskCh)
		if r.exit {
			return
		}

		// 2. destroy_unused.
		active := r.activeContextIDs()
		r.contexts.DestroyUnused(r.log, active)

		// 3. scheduling pass.
		now := r.clock.NowNs()
		picked := r.schedulingPass(now)

		// 4. execute if picked.
		if picked != nil {
			r.transitionTo(utilization.StateBusy, &lastTransition)
			r.execute(picked, resolve)
			continue
		}

		// 5. IDLE, block with timeout.
		r.transitionTo(utilization.StateIdle, &lastTransition)
		timeout := r.nextDeadlineTimeout(now)
		task, ok := r.blockForTask(taskCh, timeout)
		if ok {
			r.transitionTo(utilization.StateAdmin, &lastTransition)
			r.applyTask(task)
		}
	}
}

func (r *Runtime) transitionTo(next utilization.State, lastTransition *int64) {
	now := r.clock.NowNs()
	elapsed := now - *lastTransition
	prev := r.state
	r.state = next
	*lastTransition = now

	_ = r.transport.SendResult(ipc.Result{
		Kind: ipc.ResultStateChange,
		State: &ipc.StateChange{
			PrevState: int(prev),
			ElapsedNs: elapsed,
		},
	})
}

func (r *Runtime) drainNonBlocking(taskCh <-chan ipc.Task) {
	for {
		select {
		case task, ok := <-taskCh:
			if !ok {
				r.exit = true
				return
			}
			r.applyTask(task)
		default:
			return
		}
	}
}

func (r *Runtime) blockForTask(taskCh <-chan ipc.Task, timeout time.Duration) (ipc.Task, bool) {
	if timeout < 0 {
		task, ok := <-taskCh
		if !ok {
			r.exit = true
		}
		return task, ok
	}
	select {
	case task, ok := <-taskCh:
		if !ok {
			r.exit = true
		}
		return task, ok
	case <-time.After(timeout):
		return ipc.Task{}, false
	}
}

func (r *Runtime) applyTask(task ipc.Task) {
	switch task.Kind {
	case ipc.TaskRegisterJob:
		impl, err := r.implFactory(task.JobImplName, task.JobImplConfig)
		if err != nil {
			r.log.Error("worker: failed to build job implementation",
				slog.String("job_impl", task.JobImplName), slog.String("err", err.Error()))
			return
		}
		r.entries[task.JobID] = &entry{
			jobID:         task.JobID,
			state:         jobs.StateSleeping,
			periodMs:      task.PeriodMs,
			periodStartNs: r.clock.NowNs() + task.PeriodMs*int64(time.Millisecond),
			contextIDs:    task.ContextIDs,
			jobImpl:       impl,
		}
	case ipc.TaskDeregisterJob:
		delete(r.entries, task.JobID)
	case ipc.TaskQueueData:
		if e, ok := r.entries[task.JobID]; ok {
			e.pendingBatch = append(e.pendingBatch, task.Data...)
		}
	case ipc.TaskTerminate:
		r.exit = true
	}
}

func (r *Runtime) activeContextIDs() map[string]struct{} {
	active := make(map[string]struct{})
	for _, e := range r.entries {
		for _, id := range e.contextIDs {
			active[id] = struct{}{}
		}
	}
	return active
}

// schedulingPass flips due SLEEPING entries to READY and picks the
// earliest-deadline READY entry, tie-broken by job id.
func (r *Runtime) schedulingPass(now int64) *entry {
	var ready []*entry
	for _, e := range r.entries {
		if e.state == jobs.StateSleeping && e.periodStartNs < now {
			e.state = jobs.StateReady
		}
		if e.state == jobs.StateReady {
			ready = append(ready, e)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	sort.Slice(ready, func(i, j int) bool {
		di := ready[i].periodStartNs + ready[i].periodMs*int64(time.Millisecond)
		dj := ready[j].periodStartNs + ready[j].periodMs*int64(time.Millisecond)
		if di != dj {
			return di < dj
		}
		return ready[i].jobID < ready[j].jobID
	})
	return ready[0]
}

func (r *Runtime) nextDeadlineTimeout(now int64) time.Duration {
	var soonest int64 = -1
	for _, e := range r.entries {
		if e.state != jobs.StateSleeping {
			continue
		}
		if soonest == -1 || e.periodStartNs < soonest {
			soonest = e.periodStartNs
		}
	}
	if soonest == -1 {
		return -1
	}
	d := time.Duration(soonest - now)
	if d < 0 {
		d = 0
	}
	return d
}

func (r *Runtime) execute(e *entry, resolve resolverFunc) {
	stats := ipc.StatisticsWire{
		PeriodStart: time.Unix(0, e.periodStartNs),
		Scheduled:   time.Unix(0, r.clock.NowNs()),
	}

	var resolved []any
	for _, id := range e.contextIDs {
		inst, err := resolve(id)
		if err != nil {
			now := time.Unix(0, r.clock.NowNs())
			stats.ExecuteStart = now
			stats.Complete = now
			e.state = jobs.StateErrored
			r.sendFailure(e.jobID, err, stats)
			return
		}
		resolved = append(resolved, inst)
	}

	stats.ExecuteStart = time.Unix(0, r.clock.NowNs())
	batch := e.pendingBatch
	e.pendingBatch = nil

	value, err := e.jobImpl.ProcessBatch(r.log, resolved, batch)
	stats.Complete = time.Unix(0, r.clock.NowNs())

	if err != nil {
		e.state = jobs.StateErrored
		r.sendFailure(e.jobID, err, stats)
		return
	}

	e.state = jobs.StateSleeping
	now := r.clock.NowNs()
	periodNs := e.periodMs * int64(time.Millisecond)
	for e.periodStartNs <= now {
		e.periodStartNs += periodNs
	}

	_ = r.transport.SendResult(ipc.Result{
		Kind: ipc.ResultJobExecution,
		JobExec: &ipc.JobExecutionResult{
			JobID: e.jobID,
			Ok:    true,
			Value: value,
			Stats: stats,
		},
	})
}

func (r *Runtime) sendFailure(jobID uint64, err error, stats ipc.StatisticsWire) {
	_ = r.transport.SendResult(ipc.Result{
		Kind: ipc.ResultJobExecution,
		JobExec: &ipc.JobExecutionResult{
			JobID:   jobID,
			Ok:      false,
			ErrKind: int(errs.KindOf(err)),
			ErrMsg:  err.Error(),
			Stats:   stats,
		},
	})
}
