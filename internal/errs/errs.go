// Package errs defines the error kinds used throughout the transcription
// fabric, as distinguished by the session layer to pick a WebSocket close
// code.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of session-close-code mapping
// and logging verbosity. It carries no retry semantics of its own: retry
// policy lives with the caller (there is none for jobs, see worker runtime).
type Kind int

const (
	// KindInternal is the catch-all: anything unexpected. Sessions close
	// with 1011 and the process keeps running.
	KindInternal Kind = iota
	// KindConfig marks malformed environment or provider-config input.
	// Surfaced at startup; the process exits.
	KindConfig
	// KindDispatcher marks a placement failure: no worker can satisfy a
	// registration (unknown tag, every placement filtered out).
	KindDispatcher
	// KindContextCreation marks a failure constructing a job context
	// instance inside a worker.
	KindContextCreation
	// KindJobExecution marks a failure inside job_impl.process_batch.
	KindJobExecution
	// KindClientTranscription marks an error caused by the client itself
	// (malformed audio, buffer overrun from pushing data too fast).
	KindClientTranscription
	// KindProtocol marks bad JSON, an unknown message type, or an
	// out-of-sequence message from the client.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindDispatcher:
		return "dispatcher"
	case KindContextCreation:
		return "context_creation"
	case KindJobExecution:
		return "job_execution"
	case KindClientTranscription:
		return "client_transcription"
	case KindProtocol:
		return "protocol"
	default:
		return "internal"
	}
}

// Error wraps an underlying cause with a Kind so layers above (the session
// state machine, in particular) can decide how to react without inspecting
// error strings.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Newf is the fmt.Errorf equivalent of New.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// was never tagged by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsClientTranscription reports whether err (or one it wraps) is a
// client-transcription error — the session must close with 1007 and the
// error's message in that case.
func IsClientTranscription(err error) bool {
	return KindOf(err) == KindClientTranscription
}
