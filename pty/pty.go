package pty

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/shellpty/shell"
)

const (
	// readBufferSize bounds a single read from the child.
	readBufferSize = 10 * 1024

	// pipeBufferSize sizes the ConPTY transport pipes.
	pipeBufferSize = 64 * 1024

	// readyTimeout bounds the readiness wait of a non-blocking read.
	readyTimeout = 100 * time.Millisecond

	// blockingReadTimeout bounds a "blocking" read so a silent child
	// cannot wedge the consumer thread.
	blockingReadTimeout = 500 * time.Millisecond

	// gracePeriod is how long teardown waits for the shell to exit on
	// its own before force-terminating it.
	gracePeriod = 200 * time.Millisecond

	// killWait bounds the wait for the child to disappear after a
	// forced termination.
	killWait = 5 * time.Second
)

// Signal identifies a control signal delivered through the terminal
// layer. ConPTY has no native signal delivery, so on Windows (and, for a
// uniform contract, on POSIX masters too) signals are emulated by
// writing the corresponding control byte into the input stream; the
// console subsystem or line discipline translates it into the real
// signal for the child's process group, exactly as a physical terminal
// would.
type Signal int

const (
	// SignalInterrupt requests interruption (Ctrl-C).
	SignalInterrupt Signal = iota
	// SignalSuspend requests suspension (Ctrl-Z).
	SignalSuspend
	// SignalEOF signals end of input (Ctrl-D).
	SignalEOF
	// SignalQuit requests a quit with core dump semantics (Ctrl-\).
	SignalQuit
)

// ControlByte returns the terminal control byte for the signal.
func (s Signal) ControlByte() byte {
	switch s {
	case SignalSuspend:
		return 0x1a
	case SignalEOF:
		return 0x04
	case SignalQuit:
		return 0x1c
	default:
		return 0x03
	}
}

// Backend is the capability surface a platform pseudo-terminal must
// provide. Implementations own the child process and are safe for use by
// one consumer at a time; callers serialize access (the session layer
// holds its own lock around every call).
type Backend interface {
	// SetEcho enables or disables line-discipline echo on the
	// transport. A no-op where the platform has no such control.
	SetEcho(on bool) error

	// WriteInput writes raw bytes to the child's input.
	WriteInput(s string) error

	// ReadOutput performs one bounded, blocking read of child output.
	ReadOutput() (string, error)

	// TryReadOutput waits up to a bounded timeout for output and
	// performs at most one bounded read. No data yields ("", nil).
	TryReadOutput() (string, error)

	// Resize changes the terminal dimensions.
	Resize(rows, cols uint16) error

	// Size reports the current terminal dimensions.
	Size() (rows, cols uint16, err error)

	// IsAlive reports child liveness without blocking.
	IsAlive() bool

	// Signal delivers an emulated terminal signal to the child.
	Signal(sig Signal) error

	// Close tears the backend down: graceful shell exit, a short grace
	// window, then forced termination, then handle release. Idempotent.
	Close() error
}

// New spawns the given shell attached to a platform pseudo-terminal of
// the given size. Zero dimensions default to 24x80.
func New(sh shell.Shell, rows, cols uint16) (Backend, error) {
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}
	return newBackend(sh, rows, cols)
}

// decode converts raw child output to text, replacing invalid byte
// sequences rather than failing: shells and curses programs routinely
// emit partial multi-byte runs at read boundaries.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
