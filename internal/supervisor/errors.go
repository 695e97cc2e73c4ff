package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn matches any *SpawnError.
	ErrSpawn = errors.New("interpreter failed to start")
	// ErrNotReady matches any *NotReadyError.
	ErrNotReady = errors.New("interpreter not ready")
	// ErrStreamTerminated matches any *StreamTerminatedError.
	ErrStreamTerminated = errors.New("interpreter stream terminated")
	// ErrClosed is returned by operations on a closed Supervisor.
	ErrClosed = errors.New("supervisor closed")
)

// SpawnError reports that the executable could not be launched.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSpawn.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// NotReadyError reports a write attempted while stdin is not writable.
// The caller may retry.
type NotReadyError struct {
	State State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("interpreter not ready (state %s)", e.State)
}

// Is reports whether target is ErrNotReady.
func (e *NotReadyError) Is(target error) bool { return target == ErrNotReady }

// Retryable is always true.
func (e *NotReadyError) Retryable() bool { return true }

// StreamTerminatedError reports an unexpected close of one of the
// interpreter's standard streams.
type StreamTerminatedError struct {
	Stream string // "stdin", "stdout" or "stderr"
	Err    error
}

func (e *StreamTerminatedError) Error() string {
	return fmt.Sprintf("interpreter %s closed unexpectedly: %v", e.Stream, e.Err)
}

func (e *StreamTerminatedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStreamTerminated.
func (e *StreamTerminatedError) Is(target error) bool { return target == ErrStreamTerminated }
