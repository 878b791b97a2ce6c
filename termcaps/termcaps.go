// Package termcaps detects the hosting terminal emulator and the
// feature set it supports. Detection is environment-driven: specific
// emulators advertise themselves through well-known variables, and the
// generic TERM value fills in the rest. Results describe the terminal
// the editor itself runs in, not the embedded sessions it spawns.
package termcaps

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
)

// TerminalType identifies a terminal emulator family.
type TerminalType int

const (
	Unknown TerminalType = iota

	// Windows terminals.
	WindowsTerminal
	WindowsConsole
	ConEmu

	// Cross-platform terminals.
	Alacritty
	WezTerm
	Kitty
	VSCode

	// Unix terminals.
	Gnome
	Konsole
	Xterm
	Rxvt
	Tmux
	Screen
	ITerm2
	AppleTerminal
)

// Detect identifies the hosting terminal from the process environment.
func Detect() TerminalType {
	return detect(os.Getenv)
}

func detect(getenv func(string) string) TerminalType {
	switch strings.ToLower(getenv("TERM_PROGRAM")) {
	case "vscode":
		return VSCode
	case "iterm.app":
		return ITerm2
	case "apple_terminal":
		return AppleTerminal
	case "wezterm":
		return WezTerm
	}

	if getenv("WT_SESSION") != "" || getenv("WT_PROFILE_ID") != "" {
		return WindowsTerminal
	}
	if getenv("ConEmuPID") != "" {
		return ConEmu
	}
	if getenv("ALACRITTY_WINDOW_ID") != "" {
		return Alacritty
	}
	if getenv("KITTY_WINDOW_ID") != "" {
		return Kitty
	}

	termVar := strings.ToLower(getenv("TERM"))
	switch {
	case strings.Contains(termVar, "alacritty"):
		return Alacritty
	case strings.Contains(termVar, "kitty"):
		return Kitty
	case strings.Contains(termVar, "tmux"):
		return Tmux
	case strings.Contains(termVar, "screen"):
		return Screen
	case strings.Contains(termVar, "xterm"):
		return Xterm
	case strings.Contains(termVar, "rxvt"):
		return Rxvt
	}

	if getenv("GNOME_TERMINAL_SERVICE") != "" || getenv("VTE_VERSION") != "" {
		return Gnome
	}
	if getenv("KONSOLE_VERSION") != "" {
		return Konsole
	}

	if runtime.GOOS == "windows" {
		return WindowsConsole
	}
	return Unknown
}

// SupportsTrueColor reports whether the terminal renders 24-bit RGB.
func (t TerminalType) SupportsTrueColor() bool {
	return t.supportsTrueColor(os.Getenv)
}

func (t TerminalType) supportsTrueColor(getenv func(string) string) bool {
	colorterm := getenv("COLORTERM")
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		return true
	}

	switch t {
	case WindowsTerminal, Alacritty, WezTerm, Kitty, VSCode, ITerm2,
		Gnome, Konsole, AppleTerminal:
		return true
	case WindowsConsole:
		// True color has been available since Windows 10 1703.
		return runtime.GOOS == "windows"
	case Xterm, Rxvt, Tmux, Screen:
		termVar := getenv("TERM")
		return strings.Contains(termVar, "256color") || strings.Contains(termVar, "truecolor")
	}
	return false
}

// SupportsUnicode reports whether the terminal handles non-ASCII text.
func (t TerminalType) SupportsUnicode() bool {
	return t.supportsUnicode(os.Getenv)
}

func (t TerminalType) supportsUnicode(getenv func(string) string) bool {
	switch t {
	case WindowsTerminal, Alacritty, WezTerm, Kitty, VSCode, ITerm2,
		AppleTerminal, Gnome, Konsole:
		return true
	case WindowsConsole:
		return runtime.GOOS == "windows"
	}

	locale := getenv("LANG")
	if locale == "" {
		locale = getenv("LC_ALL")
	}
	locale = strings.ToLower(locale)
	return strings.Contains(locale, "utf-8") || strings.Contains(locale, "utf8")
}

// SupportsMouse reports whether the terminal forwards mouse events.
func (t TerminalType) SupportsMouse() bool {
	switch t {
	case WindowsTerminal, Alacritty, WezTerm, Kitty, VSCode, ITerm2,
		AppleTerminal, Gnome, Konsole, Xterm:
		return true
	case WindowsConsole:
		return runtime.GOOS == "windows"
	}
	return false
}

// SupportsOSC52 reports whether the terminal honors the OSC 52
// clipboard escape.
func (t TerminalType) SupportsOSC52() bool {
	return t.supportsOSC52(os.Getenv)
}

func (t TerminalType) supportsOSC52(getenv func(string) string) bool {
	switch t {
	case Alacritty, WezTerm, Kitty, ITerm2, WindowsTerminal, Xterm:
		return true
	case Tmux:
		// Needs set-clipboard enabled, so only claim it inside tmux.
		return getenv("TMUX") != ""
	}
	return false
}

// String returns the emulator's display name.
func (t TerminalType) String() string {
	switch t {
	case WindowsTerminal:
		return "Windows Terminal"
	case WindowsConsole:
		return "Windows Console"
	case ConEmu:
		return "ConEmu"
	case Alacritty:
		return "Alacritty"
	case WezTerm:
		return "WezTerm"
	case Kitty:
		return "Kitty"
	case VSCode:
		return "VS Code Terminal"
	case Gnome:
		return "GNOME Terminal"
	case Konsole:
		return "Konsole"
	case Xterm:
		return "XTerm"
	case Rxvt:
		return "RXVT"
	case Tmux:
		return "tmux"
	case Screen:
		return "GNU Screen"
	case ITerm2:
		return "iTerm2"
	case AppleTerminal:
		return "Terminal.app"
	}
	return "Unknown Terminal"
}

// Capabilities is the full feature snapshot for one terminal.
type Capabilities struct {
	Type        TerminalType
	Interactive bool
	TrueColor   bool
	Unicode     bool
	Mouse       bool
	OSC52       bool
}

// Known reports whether the emulator was positively identified.
func (c Capabilities) Known() bool { return c.Type != Unknown }

var (
	currentOnce sync.Once
	currentCaps Capabilities
)

// Current returns the capabilities of the terminal this process runs
// in. The environment is probed once; later calls return the cached
// snapshot.
func Current() Capabilities {
	currentOnce.Do(func() {
		t := Detect()
		currentCaps = Capabilities{
			Type:        t,
			Interactive: term.IsTerminal(int(os.Stdout.Fd())),
			TrueColor:   t.SupportsTrueColor(),
			Unicode:     t.SupportsUnicode(),
			Mouse:       t.SupportsMouse(),
			OSC52:       t.SupportsOSC52(),
		}
	})
	return currentCaps
}
