package ipc

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"
)

// Transport wraps a pair of pipes (e.g. a worker process's stdin/stdout)
// with gob encoding. Reads are expected to be pumped from a single
// goroutine per direction; Send is safe for concurrent callers.
type Transport struct {
	enc *gob.Encoder
	dec *gob.Decoder

	writeMu sync.Mutex
}

// NewTransport wraps w (for outgoing messages) and r (for incoming
// messages).
func NewTransport(w io.Writer, r io.Reader) *Transport {
	return &Transport{
		enc: gob.NewEncoder(w),
		dec: gob.NewDecoder(r),
	}
}

// SendTask encodes and writes a Task. Safe for concurrent use.
func (t *Transport) SendTask(task Task) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.enc.Encode(task); err != nil {
		return fmt.Errorf("ipc: failed to encode task: %w", err)
	}
	return nil
}

// RecvTask blocks until the next Task arrives, or returns an error
// (including io.EOF on pipe close).
func (t *Transport) RecvTask() (Task, error) {
	var task Task
	if err := t.dec.Decode(&task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// SendResult encodes and writes a Result. Safe for concurrent use.
func (t *Transport) SendResult(res Result) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.enc.Encode(res); err != nil {
		return fmt.Errorf("ipc: failed to encode result: %w", err)
	}
	return nil
}

// RecvResult blocks until the next Result arrives, or returns an error
// (including io.EOF on pipe close).
func (t *Transport) RecvResult() (Result, error) {
	var res Result
	if err := t.dec.Decode(&res); err != nil {
		return Result{}, err
	}
	return res, nil
}
