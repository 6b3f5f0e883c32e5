package manager

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func spawnFakeWorker(t *testing.T) (*ipc.Transport, Spawner) {
	mainR, workerW := io.Pipe()
	workerR, mainW := io.Pipe()
	workerSide := ipc.NewTransport(workerW, workerR)
	mainSide := ipc.NewTransport(mainW, mainR)

	spawn := func() (*ipc.Transport, func() error, error) {
		return mainSide, func() error { return nil }, nil
	}
	return workerSide, spawn
}

func TestWorkerManagerInitializeAndTerminate(t *testing.T) {
	workerSide, spawn := spawnFakeWorker(t)

	go func() {
		_ = workerSide.SendResult(ipc.Result{Kind: ipc.ResultInitializeWorker})
	}()

	m, err := New("w1", testLog(), time.Minute, spawn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	taskCh := make(chan ipc.Task, 1)
	go func() {
		task, _ := workerSide.RecvTask()
		taskCh <- task
	}()

	if err := m.SendTerminate(); err != nil {
		t.Fatalf("unexpected error sending terminate: %v", err)
	}

	select {
	case task := <-taskCh:
		if task.Kind != ipc.TaskTerminate {
			t.Fatalf("expected TERMINATE task, got %+v", task)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminate task")
	}
}

func TestWorkerManagerInitializationFailurePropagates(t *testing.T) {
	workerSide, spawn := spawnFakeWorker(t)

	go func() {
		_ = workerSide.SendResult(ipc.Result{Kind: ipc.ResultInitializeWorker, WorkerError: "model load failed"})
	}()

	if _, err := New("w1", testLog(), time.Minute, spawn); err == nil {
		t.Fatal("expected initialization failure to propagate")
	}
}

func TestJobHandleDeregisterIsIdempotent(t *testing.T) {
	workerSide, spawn := spawnFakeWorker(t)
	go func() { _ = workerSide.SendResult(ipc.Result{Kind: ipc.ResultInitializeWorker}) }()

	m, err := New("w1", testLog(), time.Minute, spawn)
	if err != nil {
		t.Fatal(err)
	}

	// drain any tasks the worker side sends so SendTask never blocks.
	go func() {
		for {
			if _, err := workerSide.RecvTask(); err != nil {
				return
			}
		}
	}()

	handle, err := m.RegisterJob([]string{"whisper"}, 100, "streaming", nil)
	if err != nil {
		t.Fatal(err)
	}

	handle.Deregister()
	handle.Deregister() // must not panic or double-send

	if err := handle.QueueData([]any{"x"}); err != nil {
		t.Fatalf("unexpected error from queue_data after deregister: %v", err)
	}
}

func TestWorkerManagerDispatchesJobResultAndAutoDeregistersOnFailure(t *testing.T) {
	workerSide, spawn := spawnFakeWorker(t)
	go func() { _ = workerSide.SendResult(ipc.Result{Kind: ipc.ResultInitializeWorker}) }()

	m, err := New("w1", testLog(), time.Minute, spawn)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for {
			if _, err := workerSide.RecvTask(); err != nil {
				return
			}
		}
	}()

	handle, err := m.RegisterJob(nil, 100, "streaming", nil)
	if err != nil {
		t.Fatal(err)
	}

	resultCh := make(chan jobs.Result, 1)
	handle.OnResult("test", func(r jobs.Result) { resultCh <- r })

	if err := workerSide.SendResult(ipc.Result{
		Kind: ipc.ResultJobExecution,
		JobExec: &ipc.JobExecutionResult{
			JobID:  0,
			Ok:     false,
			ErrMsg: "decode failed",
		},
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-resultCh:
		if r.Ok {
			t.Fatalf("expected a Failure result, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched job result")
	}

	// give the pump a moment to process the auto-deregister
	time.Sleep(10 * time.Millisecond)
	m.mu.Lock()
	_, stillRegistered := m.handles[0]
	m.mu.Unlock()
	if stillRegistered {
		t.Fatal("expected the failed job's handle to be removed from the manager")
	}
	if err := handle.QueueData([]any{"x"}); err != nil {
		t.Fatalf("unexpected error after auto-deregister: %v", err)
	}
}
