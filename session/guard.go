package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/shellpty/pty"
)

// recoverPoison converts a panic raised under the session lock into a
// counted, logged pty.ErrLockPoisoned. The buffers the lock guards are
// not touched by the recovery, so the session remains usable by every
// other caller. Continuing is strictly better than permanently bricking
// the pane.
func (s *Session) recoverPoison(err *error) {
	if r := recover(); r != nil {
		s.poisoned.Add(1)
		slog.Warn("recovered panic while session lock held",
			"session", s.id, "panic", r)
		*err = fmt.Errorf("%w: %v", pty.ErrLockPoisoned, r)
	}
}

// locked runs fn while holding the session mutex.
func (s *Session) locked(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverPoison(&err)
	return fn()
}

// tryLocked is the reader-side variant: it never blocks on the mutex.
// It reports ok=false when the lock was contended and the cycle should
// be skipped.
func (s *Session) tryLocked(fn func() error) (ok bool, err error) {
	if !s.mu.TryLock() {
		return false, nil
	}
	defer s.mu.Unlock()
	defer s.recoverPoison(&err)
	return true, fn()
}

// lockedWithin is the bounded variant: it gives up with
// pty.ErrLockTimeout when the mutex stays contended past the timeout.
// Used on the shutdown path, where waiting forever on a wedged caller
// would turn Close into a hang.
func (s *Session) lockedWithin(timeout time.Duration, fn func() error) (err error) {
	deadline := time.Now().Add(timeout)
	for !s.mu.TryLock() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: after %v", pty.ErrLockTimeout, timeout)
		}
		time.Sleep(time.Millisecond)
	}
	defer s.mu.Unlock()
	defer s.recoverPoison(&err)
	return fn()
}

// PoisonCount reports how many panics have been recovered under the
// session lock since creation.
func (s *Session) PoisonCount() uint32 {
	return s.poisoned.Load()
}
