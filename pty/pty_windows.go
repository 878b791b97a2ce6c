//go:build windows

package pty

import (
	"log/slog"

	"github.com/dshills/shellpty/shell"
)

// newBackend picks the Windows tier once, at construction. The native
// pseudo-console is preferred; if its entry points are absent or any
// construction step fails, the portable fallback takes over. The choice
// never switches mid-life: the returned backend is one of exactly two
// concrete implementations in this package.
func newBackend(sh shell.Shell, rows, cols uint16) (Backend, error) {
	if conptyAvailable() {
		b, err := newConptyBackend(sh, rows, cols)
		if err == nil {
			return b, nil
		}
		slog.Warn("native pseudo console failed, using portable fallback",
			"shell", sh.Command(), "error", err)
	} else {
		slog.Warn("pseudo console API not present, using portable fallback",
			"shell", sh.Command())
	}
	return newFallbackBackend(sh, rows, cols)
}
