package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/shellpty/pty"
	"github.com/dshills/shellpty/shell"
)

// BracketedPasteDisable is the escape sequence some shells emit after a
// submitted line when they turn bracketed paste mode back off. It is
// observed behavior of particular shell/terminal combinations, not a
// protocol guarantee, which is why the strip list is configurable.
const BracketedPasteDisable = "\x1b[?2004l\r\r\n"

const (
	defaultRows         = 24
	defaultCols         = 80
	defaultPollInterval = 50 * time.Millisecond
	defaultSettleDelay  = 100 * time.Millisecond
	updateQueueSize     = 64
	closeLockTimeout    = 5 * time.Second
)

// Options configures a new session.
type Options struct {
	// Shell is the interpreter to run. The zero value means Bash;
	// use shell.Default() for environment detection.
	Shell shell.Shell

	// Rows and Cols are the initial terminal dimensions (24x80 when
	// zero).
	Rows uint16
	Cols uint16

	// PollInterval is the reader goroutine cadence. It bounds both
	// output latency and worst-case shutdown latency.
	PollInterval time.Duration

	// SettleDelay is how long command submission waits before reading
	// back output.
	SettleDelay time.Duration

	// StripSequences overrides the quirk-strip list applied to captured
	// output. Nil selects the default for the shell; an empty non-nil
	// slice disables stripping.
	StripSequences []string
}

// Session is the platform-independent terminal session the editor
// consumes. All methods are safe for concurrent use.
type Session struct {
	id string
	sh shell.Shell

	mu      sync.Mutex // guards backend calls, output, and input
	backend pty.Backend
	output  string
	input   string

	strip  []string
	settle time.Duration
	poll   time.Duration

	forceRerender atomic.Bool
	shutdown      atomic.Bool
	poisoned      atomic.Uint32

	updates   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New starts a session running the given shell with default options.
func New(sh shell.Shell) (*Session, error) {
	return NewWithOptions(Options{Shell: sh})
}

// NewWithOptions starts a session. Construction spawns the backend,
// disables transport echo, flushes the shell's startup banner into the
// transcript, and launches the reader goroutine. On any failure every
// partially acquired resource is released before returning.
func NewWithOptions(opts Options) (*Session, error) {
	if opts.Rows == 0 {
		opts.Rows = defaultRows
	}
	if opts.Cols == 0 {
		opts.Cols = defaultCols
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}

	backend, err := pty.New(opts.Shell, opts.Rows, opts.Cols)
	if err != nil {
		return nil, err
	}

	strip := opts.StripSequences
	if strip == nil && opts.Shell.InsertsExtraNewline() {
		strip = []string{BracketedPasteDisable}
	}

	s := &Session{
		id:      uuid.New().String(),
		sh:      opts.Shell,
		backend: backend,
		strip:   strip,
		settle:  opts.SettleDelay,
		poll:    opts.PollInterval,
		updates: make(chan struct{}, updateQueueSize),
		done:    make(chan struct{}),
	}

	if err := s.initialize(); err != nil {
		backend.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

// initialize disables echo and flushes the startup banner so the first
// frame the editor renders starts at a clean prompt.
func (s *Session) initialize() error {
	if err := s.backend.SetEcho(false); err != nil {
		return fmt.Errorf("%w: %v", pty.ErrInitializationFailed, err)
	}
	time.Sleep(s.settle)
	if err := s.locked(func() error { return s.runCommandLocked("") }); err != nil {
		return fmt.Errorf("%w: %v", pty.ErrInitializationFailed, err)
	}
	return nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Shell returns the interpreter this session runs.
func (s *Session) Shell() shell.Shell { return s.sh }

// Output returns the captured transcript since the last Clear.
func (s *Session) Output() string {
	var out string
	s.locked(func() error { //nolint:errcheck
		out = s.output
		return nil
	})
	return out
}

// InputLine returns the in-progress line being composed by keystrokes.
func (s *Session) InputLine() string {
	var in string
	s.locked(func() error { //nolint:errcheck
		in = s.input
		return nil
	})
	return in
}

// IsAlive reports whether the child process is still running.
func (s *Session) IsAlive() bool { return s.backend.IsAlive() }

// RunCommand writes cmd to the shell, waits a short settle interval,
// echoes it into the transcript when the shell needs manual echo, then
// captures one read of output with quirks stripped.
func (s *Session) RunCommand(cmd string) error {
	return s.locked(func() error { return s.runCommandLocked(cmd) })
}

func (s *Session) runCommandLocked(cmd string) error {
	if err := s.backend.WriteInput(cmd); err != nil {
		return err
	}
	time.Sleep(s.settle)
	if s.sh.ManualInputEcho() {
		s.output += cmd
	}
	out, err := s.backend.ReadOutput()
	if err != nil {
		return err
	}
	s.output += s.stripQuirks(out)
	return nil
}

// SilentRunCommand clears the transcript, runs cmd, and removes the
// literal leading echo of cmd so only the command's effect remains.
func (s *Session) SilentRunCommand(cmd string) error {
	return s.locked(func() error {
		s.output = ""
		if err := s.runCommandLocked(cmd); err != nil {
			return err
		}
		s.output = strings.TrimPrefix(s.output, cmd)
		return nil
	})
}

// CharInput appends c to the input line. A newline submits the
// accumulated line as a command; the line is cleared on submit whether
// or not the command succeeds.
func (s *Session) CharInput(c rune) error {
	return s.locked(func() error {
		s.input += string(c)
		if c != '\n' {
			return nil
		}
		line := s.input
		s.input = ""
		return s.runCommandLocked(line)
	})
}

// CharPop removes the last character of the input line.
func (s *Session) CharPop() {
	s.locked(func() error { //nolint:errcheck
		if s.input != "" {
			_, size := utf8.DecodeLastRuneInString(s.input)
			s.input = s.input[:len(s.input)-size]
		}
		return nil
	})
}

// Clear empties the transcript and issues a bare newline so the shell
// repaints its prompt, with any leading blank line trimmed.
func (s *Session) Clear() error {
	return s.locked(func() error {
		s.output = ""
		if err := s.runCommandLocked("\n"); err != nil {
			return err
		}
		s.output = strings.TrimLeft(s.output, "\r\n")
		return nil
	})
}

// Write sends raw bytes to the shell without echo or capture logic.
func (s *Session) Write(data string) error {
	return s.locked(func() error { return s.backend.WriteInput(data) })
}

// Resize changes the terminal dimensions.
func (s *Session) Resize(rows, cols uint16) error {
	return s.locked(func() error { return s.backend.Resize(rows, cols) })
}

// Size reports the current terminal dimensions.
func (s *Session) Size() (rows, cols uint16, err error) {
	lerr := s.locked(func() error {
		rows, cols, err = s.backend.Size()
		return err
	})
	if err == nil {
		err = lerr
	}
	return rows, cols, err
}

// Signal delivers an emulated terminal signal to the child.
func (s *Session) Signal(sig pty.Signal) error {
	return s.locked(func() error { return s.backend.Signal(sig) })
}

// CatchUp performs one non-blocking pull of pending output and reports
// whether anything was appended. Finding no data is not an error.
func (s *Session) CatchUp() (bool, error) {
	var appended bool
	err := s.locked(func() error {
		var err error
		appended, err = s.catchUpLocked()
		return err
	})
	return appended, err
}

func (s *Session) catchUpLocked() (bool, error) {
	out, err := s.backend.TryReadOutput()
	if err != nil {
		return false, err
	}
	if out == "" {
		return false, nil
	}
	s.output += s.stripQuirks(out)
	return true, nil
}

// CheckForceRerender atomically reads and resets the rerender flag. It
// returns true at most once per reader-observed update.
func (s *Session) CheckForceRerender() bool {
	return s.forceRerender.Swap(false)
}

// CheckForUpdates drains one pending reader notification without
// blocking.
func (s *Session) CheckForUpdates() bool {
	select {
	case <-s.updates:
		return true
	default:
		return false
	}
}

func (s *Session) stripQuirks(out string) string {
	for _, seq := range s.strip {
		out = strings.ReplaceAll(out, seq, "")
	}
	return out
}

// readLoop is the background reader: every poll interval it try-locks
// the session, pulls any fresh output, and raises the rerender flag and
// a notification. Contention skips the cycle rather than blocking, so
// the shutdown flag is always re-checked within one interval.
func (s *Session) readLoop() {
	defer close(s.done)
	for !s.shutdown.Load() {
		time.Sleep(s.poll)
		var appended bool
		ok, err := s.tryLocked(func() error {
			var err error
			appended, err = s.catchUpLocked()
			return err
		})
		if !ok || err != nil {
			// Contended, or the child is gone; either way the next
			// cycle (or Close) deals with it.
			continue
		}
		if appended {
			s.forceRerender.Store(true)
			select {
			case s.updates <- struct{}{}:
			default:
			}
		}
	}
}

// Close shuts the session down: it flips the shutdown flag, joins the
// reader goroutine, then tears down the backend (graceful shell exit,
// short grace window, forced termination). The lock acquisition is
// bounded; a caller wedged under the lock costs a warning, not a leaked
// child. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.shutdown.Store(true)
		<-s.done
		err := s.lockedWithin(closeLockTimeout, func() error { return s.backend.Close() })
		if errors.Is(err, pty.ErrLockTimeout) {
			slog.Warn("session lock held through shutdown, closing backend anyway",
				"session", s.id)
			err = s.backend.Close()
		}
		s.closeErr = err
	})
	return s.closeErr
}
