// Package session turns a blocking platform pty backend into the
// non-blocking, continuously updating text stream the editor's render
// loop consumes.
//
// Each Session owns one backend, an append-only output transcript, the
// in-progress input line, and a background reader goroutine. The reader
// wakes every poll interval, try-locks the session (skipping the cycle
// on contention so shutdown latency stays bounded), pulls any freshly
// available output, and raises a one-shot rerender flag plus a
// best-effort notification. The editor polls CheckForceRerender and
// CheckForUpdates each frame and reads Output when either fires.
//
// Every lock acquisition runs inside a recovering guard: a panic raised
// while the session lock is held is logged and contained rather than
// propagated, so a single misbehaving caller cannot brick the session.
// The buffers the lock guards remain valid across such a recovery.
package session
