package pty

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"
)

// Sentinel errors for the pty package.
var (
	// ErrProcessTerminated is returned when the child process has
	// exited. It is an expected lifecycle event, not a bug.
	ErrProcessTerminated = errors.New("pty child process has terminated")

	// ErrSpawnFailed is returned when the shell executable cannot be
	// launched.
	ErrSpawnFailed = errors.New("failed to spawn shell")

	// ErrInitializationFailed is returned when backend construction
	// fails after the spawn step.
	ErrInitializationFailed = errors.New("pty initialization failed")

	// ErrCommunication is returned for read/write failures that do not
	// indicate child exit.
	ErrCommunication = errors.New("pty communication error")

	// ErrLockPoisoned is reported when a panic occurred while the
	// session lock was held. The session recovers and stays usable.
	ErrLockPoisoned = errors.New("session lock poisoned")

	// ErrLockTimeout is returned when a bounded lock acquisition gives
	// up.
	ErrLockTimeout = errors.New("session lock acquisition timed out")
)

// PlatformError records a native API failure together with its OS error
// code.
type PlatformError struct {
	// Op names the native call that failed.
	Op string
	// Code is the platform error code (errno or HRESULT), if known.
	Code uintptr
	// Err is the underlying error, if any.
	Err error
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: platform error %#x", e.Op, e.Code)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// platformErr builds a PlatformError, extracting the numeric code when
// the underlying error is an errno.
func platformErr(op string, err error) error {
	pe := &PlatformError{Op: op, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		pe.Code = uintptr(errno)
	}
	return pe
}

// classify maps low-level I/O failures to semantic error kinds. A broken
// pipe or unexpected EOF means the child exited; that is reported as
// ErrProcessTerminated so callers can distinguish a finished session
// from a transport fault. Everything else is an ErrCommunication with
// the platform detail preserved in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, fs.ErrClosed) {
		return ErrProcessTerminated
	}
	return fmt.Errorf("%w: %w", ErrCommunication, err)
}
