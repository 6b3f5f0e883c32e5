package worker

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
)

// fakeClock lets tests advance time deterministically instead of sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) NowNs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d)
}

// recordingImpl is a jobs.Implementation that records each invocation and
// signals completion on a channel so tests can synchronize.
type recordingImpl struct {
	name   string
	doneCh chan string
}

func (r *recordingImpl) ProcessBatch(log *slog.Logger, contexts []any, batch jobs.Batch) (any, error) {
	r.doneCh <- r.name
	return nil, nil
}

func testRuntimeLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeTransportPair() (*ipc.Transport, *ipc.Transport) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return ipc.NewTransport(w1, r2), ipc.NewTransport(w2, r1)
}

func TestSchedulingPassEDFTieBreaksByJobID(t *testing.T) {
	clock := &fakeClock{now: 1000}
	r := &Runtime{
		log:     testRuntimeLogger(),
		clock:   clock,
		entries: make(map[uint64]*entry),
	}
	r.entries[2] = &entry{jobID: 2, state: jobs.StateReady, periodMs: 100, periodStartNs: 0}
	r.entries[1] = &entry{jobID: 1, state: jobs.StateReady, periodMs: 100, periodStartNs: 0}

	picked := r.schedulingPass(clock.NowNs())
	if picked == nil || picked.jobID != 1 {
		t.Fatalf("expected tie broken toward lowest job id, got %+v", picked)
	}
}

func TestSchedulingPassPicksEarliestDeadline(t *testing.T) {
	clock := &fakeClock{now: 1000}
	r := &Runtime{
		log:     testRuntimeLogger(),
		clock:   clock,
		entries: make(map[uint64]*entry),
	}
	// job 1: period 200ms starting at t=0 -> deadline 200ms
	// job 2: period 100ms starting at t=0 -> deadline 100ms (earlier)
	r.entries[1] = &entry{jobID: 1, state: jobs.StateReady, periodMs: 200, periodStartNs: 0}
	r.entries[2] = &entry{jobID: 2, state: jobs.StateReady, periodMs: 100, periodStartNs: 0}

	picked := r.schedulingPass(clock.NowNs())
	if picked == nil || picked.jobID != 2 {
		t.Fatalf("expected job 2 (earlier deadline) picked, got %+v", picked)
	}
}

func TestSchedulingPassFlipsSleepingToReadyWhenDue(t *testing.T) {
	clock := &fakeClock{now: 1000}
	r := &Runtime{
		log:     testRuntimeLogger(),
		clock:   clock,
		entries: make(map[uint64]*entry),
	}
	r.entries[1] = &entry{jobID: 1, state: jobs.StateSleeping, periodMs: 100, periodStartNs: 500}

	picked := r.schedulingPass(1000)
	if picked == nil || picked.jobID != 1 {
		t.Fatalf("expected sleeping-but-due entry promoted and picked, got %+v", picked)
	}
	if r.entries[1].state != jobs.StateReady {
		t.Fatalf("expected entry flipped to READY, got %v", r.entries[1].state)
	}
}

func TestSchedulingPassNoneReady(t *testing.T) {
	clock := &fakeClock{now: 1000}
	r := &Runtime{
		log:     testRuntimeLogger(),
		clock:   clock,
		entries: make(map[uint64]*entry),
	}
	r.entries[1] = &entry{jobID: 1, state: jobs.StateSleeping, periodMs: 100, periodStartNs: 5000}

	if picked := r.schedulingPass(1000); picked != nil {
		t.Fatalf("expected no entry picked, got %+v", picked)
	}
}

func TestExecuteAdvancesPeriodStartPastNow(t *testing.T) {
	clock := &fakeClock{now: int64(10 * time.Second)}
	main, worker := newPipeTransportPair()

	r := &Runtime{
		log:       testRuntimeLogger(),
		transport: worker,
		clock:     clock,
		entries:   make(map[uint64]*entry),
	}
	e := &entry{
		jobID:         1,
		state:         jobs.StateReady,
		periodMs:      100,
		periodStartNs: 0,
		jobImpl:       &recordingImpl{name: "j1", doneCh: make(chan string, 1)},
	}
	r.entries[1] = e

	resultCh := make(chan ipc.Result, 1)
	go func() {
		res, err := main.RecvResult()
		if err == nil {
			resultCh <- res
		}
	}()

	r.execute(e, func(string) (any, error) { return nil, nil })

	select {
	case res := <-resultCh:
		if res.Kind != ipc.ResultJobExecution || !res.JobExec.Ok {
			t.Fatalf("expected successful job execution result, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job execution result")
	}

	if e.state != jobs.StateSleeping {
		t.Fatalf("expected SLEEPING after success, got %v", e.state)
	}
	if e.periodStartNs <= clock.NowNs() {
		t.Fatalf("expected period_start_ns advanced past now, got %d <= %d", e.periodStartNs, clock.NowNs())
	}
}

func TestExecuteContextResolutionFailureMarksErrored(t *testing.T) {
	clock := &fakeClock{now: 0}
	main, worker := newPipeTransportPair()

	r := &Runtime{
		log:       testRuntimeLogger(),
		transport: worker,
		clock:     clock,
		entries:   make(map[uint64]*entry),
	}
	e := &entry{jobID: 1, state: jobs.StateReady, contextIDs: []string{"missing"}}
	r.entries[1] = e

	resultCh := make(chan ipc.Result, 1)
	go func() {
		res, err := main.RecvResult()
		if err == nil {
			resultCh <- res
		}
	}()

	done := make(chan struct{})
	go func() {
		r.execute(e, func(id string) (any, error) {
			return nil, &testErr{msg: "boom"}
		})
		close(done)
	}()
	<-done

	select {
	case res := <-resultCh:
		if res.Kind != ipc.ResultJobExecution || res.JobExec.Ok {
			t.Fatalf("expected failed job execution result, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure result")
	}

	if e.state != jobs.StateErrored {
		t.Fatalf("expected ERRORED state after context resolution failure, got %v", e.state)
	}
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
