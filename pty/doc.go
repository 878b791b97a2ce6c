// Package pty provides the cross-platform pseudo-terminal backends that
// carry bytes between a shell child process and the editor.
//
// A Backend owns exactly one live child process and every native
// resource tied to it (pty descriptor, pseudo-console handle, process
// and pipe handles). Backends are created through New and released
// exactly once through Close, which attempts a graceful shell exit
// before force-terminating the child.
//
// Two implementations exist:
//
//   - POSIX: the child is attached to a pty device (creack/pty), with
//     bounded readiness polling for non-blocking reads.
//   - Windows: a two-tier choice fixed at construction. Tier one drives
//     the native ConPTY API directly; if the entry points are missing or
//     any construction step fails, tier two falls back to a
//     library-mediated pseudo console.
//
// On both platforms a non-blocking read that finds no data returns an
// empty string and a nil error: "no data yet" is a valid outcome,
// distinct from failure. A terminated child surfaces as
// ErrProcessTerminated on every subsequent operation.
package pty
