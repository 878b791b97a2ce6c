// Package shell defines the closed set of command interpreters the
// embedded terminal knows how to drive, together with the per-variant
// behavior flags the PTY layer needs to normalize their quirks.
package shell

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Shell identifies a supported command interpreter.
type Shell int

const (
	// Bash is the Bourne-again shell, the POSIX default.
	Bash Shell = iota
	// Dash is the Debian Almquist shell.
	Dash
	// Zsh is the Z shell.
	Zsh
	// Fish is the friendly interactive shell.
	Fish
	// PowerShell is Windows PowerShell (powershell.exe).
	PowerShell
	// PowerShellCore is cross-platform PowerShell (pwsh.exe).
	PowerShellCore
	// Cmd is the Windows command prompt (cmd.exe).
	Cmd
)

// Command returns the executable name for the shell. It is never empty.
func (s Shell) Command() string {
	switch s {
	case Dash:
		return "dash"
	case Zsh:
		return "zsh"
	case Fish:
		return "fish"
	case PowerShell:
		return "powershell.exe"
	case PowerShellCore:
		return "pwsh.exe"
	case Cmd:
		return "cmd.exe"
	default:
		return "bash"
	}
}

// Args returns the launch arguments that keep an interactive session
// predictable for the shell. Windows PowerShell prints a banner unless
// told otherwise; the POSIX shells need nothing.
func (s Shell) Args() []string {
	switch s {
	case PowerShell, PowerShellCore:
		return []string{"-NoLogo"}
	default:
		return nil
	}
}

// ManualInputEcho reports whether the PTY layer must echo typed input
// into the captured output itself. Bash and Dash rely on the line
// discipline for echo; with echo disabled on the device, nothing would
// appear without this. Zsh and Fish echo through their line editors, and
// the Windows shells echo through the pseudo console.
func (s Shell) ManualInputEcho() bool {
	return s == Bash || s == Dash
}

// InsertsExtraNewline reports whether the shell emits a spurious
// bracketed-paste-disable sequence after a submitted line that must be
// stripped from captured output.
func (s Shell) InsertsExtraNewline() bool {
	switch s {
	case Zsh, PowerShell, PowerShellCore, Cmd:
		return false
	default:
		return true
	}
}

// String returns the canonical command name.
func (s Shell) String() string { return s.Command() }

// FromString maps a plain identifier (as used by the scripting layer)
// to a Shell. It accepts both bare names and .exe forms.
func FromString(name string) (Shell, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bash":
		return Bash, true
	case "dash":
		return Dash, true
	case "zsh":
		return Zsh, true
	case "fish":
		return Fish, true
	case "powershell", "powershell.exe":
		return PowerShell, true
	case "pwsh", "pwsh.exe":
		return PowerShellCore, true
	case "cmd", "cmd.exe":
		return Cmd, true
	default:
		return Bash, false
	}
}

// Variants returns every shell supported on the current platform.
func Variants() []Shell {
	if runtime.GOOS == "windows" {
		return []Shell{PowerShell, PowerShellCore, Cmd}
	}
	return []Shell{Bash, Dash, Zsh, Fish}
}

// Detect inspects the environment and returns the best-guess shell for
// the current platform. Detection never fails; it falls back to Bash on
// POSIX and PowerShell on Windows.
func Detect() Shell {
	if runtime.GOOS == "windows" {
		return detectWindows()
	}
	return detectPosix()
}

func detectPosix() Shell {
	switch sh := os.Getenv("SHELL"); {
	case strings.Contains(sh, "zsh"):
		return Zsh
	case strings.Contains(sh, "fish"):
		return Fish
	case strings.Contains(sh, "dash"):
		return Dash
	default:
		return Bash
	}
}

func detectWindows() Shell {
	// PSModulePath is exported by both PowerShell editions; prefer the
	// cross-platform pwsh when it is on PATH.
	if os.Getenv("PSModulePath") != "" {
		if _, err := exec.LookPath("pwsh"); err == nil {
			return PowerShellCore
		}
		return PowerShell
	}
	if _, err := exec.LookPath("pwsh"); err == nil {
		return PowerShellCore
	}
	if _, err := exec.LookPath("powershell"); err == nil {
		return PowerShell
	}
	if strings.Contains(strings.ToLower(os.Getenv("COMSPEC")), "cmd.exe") {
		return Cmd
	}
	return PowerShell
}

var (
	defaultOnce  sync.Once
	defaultShell Shell
)

// Default returns the detected shell for this process. The environment
// is probed once and the result cached for the process lifetime.
func Default() Shell {
	defaultOnce.Do(func() {
		defaultShell = Detect()
	})
	return defaultShell
}
