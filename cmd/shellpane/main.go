// Package main is a single-pane terminal viewer built on the session
// package. It renders the session transcript in a tcell screen, feeds
// keystrokes through the session's input line, and demonstrates the
// polling contract an editor integration uses.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/shellpty/clipboard"
	"github.com/dshills/shellpty/config"
	"github.com/dshills/shellpty/pty"
	"github.com/dshills/shellpty/session"
	"github.com/dshills/shellpty/shell"
	"github.com/dshills/shellpty/termcaps"
)

const renderInterval = 30 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	var (
		shellName  string
		configPath string
		debugLog   string
	)
	flag.StringVar(&shellName, "shell", "", "shell to run (bash, dash, zsh, fish, powershell, pwsh, cmd)")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&debugLog, "debug-log", "", "write debug logs to this file")
	flag.Parse()

	if debugLog != "" {
		f, err := os.OpenFile(debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open debug log: %v\n", err)
			return 1
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		// The screen owns the terminal; keep log noise out of it.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	}

	settings, err := loadSettings(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	sh := pickShell(shellName, settings)

	sess, err := session.NewWithOptions(session.Options{
		Shell:          sh,
		Rows:           settings.Rows,
		Cols:           settings.Cols,
		PollInterval:   settings.PollInterval,
		SettleDelay:    settings.SettleDelay,
		StripSequences: settings.StripSequences,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: start %s session: %v\n", sh, err)
		return 1
	}
	defer sess.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: create screen: %v\n", err)
		return 1
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init screen: %v\n", err)
		return 1
	}
	defer screen.Fini()

	clip := clipboard.New()
	if settings.OSC52Clipboard && termcaps.Current().OSC52 {
		clip = clip.WithOSC52Fallback(os.Stdout)
	}

	p := &pane{
		screen: screen,
		sess:   sess,
		clip:   clip,
	}
	return p.loop()
}

func loadSettings(path string) (config.Settings, error) {
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return config.Default(), nil
		}
	}
	return config.Load(config.ExpandHome(path))
}

func pickShell(name string, settings config.Settings) shell.Shell {
	if name == "" {
		name = settings.Shell
	}
	if name == "" {
		return shell.Default()
	}
	if sh, ok := shell.FromString(name); ok {
		return sh
	}
	fmt.Fprintf(os.Stderr, "unknown shell %q, using %s\n", name, shell.Default())
	return shell.Default()
}

type pane struct {
	screen tcell.Screen
	sess   *session.Session
	clip   *clipboard.Clipboard
	status string
}

func (p *pane) loop() int {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go p.screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()
	defer close(quit)

	p.draw()
	for {
		select {
		case <-ticker.C:
			if p.sess.CheckForceRerender() || p.sess.CheckForUpdates() {
				p.draw()
			}
		case ev, ok := <-events:
			if !ok {
				return 0
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				cols, rows := ev.Size()
				if rows > 0 && cols > 0 && rows <= 0xffff && cols <= 0xffff {
					p.sess.Resize(uint16(rows), uint16(cols)) //nolint:errcheck
				}
				p.screen.Sync()
				p.draw()
			case *tcell.EventKey:
				done, code := p.handleKey(ev)
				if done {
					return code
				}
				p.draw()
			}
		}
	}
}

// handleKey maps one key event onto the session. It reports whether
// the pane should exit and with what code.
func (p *pane) handleKey(ev *tcell.EventKey) (bool, int) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlQ:
		return true, 0
	case tcell.KeyCtrlC:
		p.report(p.sess.Signal(pty.SignalInterrupt), "interrupt sent")
	case tcell.KeyCtrlD:
		p.report(p.sess.Signal(pty.SignalEOF), "eof sent")
	case tcell.KeyCtrlL:
		p.report(p.sess.Clear(), "cleared")
	case tcell.KeyCtrlY:
		p.report(p.clip.SetText(p.sess.Output()), "transcript copied")
	case tcell.KeyEnter:
		p.report(p.sess.CharInput('\n'), "")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		p.sess.CharPop()
	case tcell.KeyRune:
		p.report(p.sess.CharInput(ev.Rune()), "")
	}
	if !p.sess.IsAlive() {
		return true, 0
	}
	return false, -1
}

func (p *pane) report(err error, okMsg string) {
	if err != nil {
		p.status = err.Error()
		slog.Debug("session operation failed", "error", err)
		return
	}
	p.status = okMsg
}

// draw renders the transcript bottom-anchored above the input line.
func (p *pane) draw() {
	p.screen.Clear()
	width, height := p.screen.Size()
	if width == 0 || height < 2 {
		p.screen.Show()
		return
	}

	style := tcell.StyleDefault
	lines := wrapLines(p.sess.Output(), width)
	visible := height - 2
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	for y, line := range lines {
		drawText(p.screen, 0, y, style, line)
	}

	prompt := "> " + p.sess.InputLine()
	drawText(p.screen, 0, height-2, style.Bold(true), prompt)
	p.screen.ShowCursor(len(prompt), height-2)

	bar := p.status
	if bar == "" {
		bar = fmt.Sprintf("%s  [esc quit, ^C interrupt, ^L clear, ^Y copy]", p.sess.Shell())
	}
	drawText(p.screen, 0, height-1, style.Reverse(true), pad(bar, width))
	p.screen.Show()
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func wrapLines(text string, width int) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSuffix(line, "\r")
		for len(line) > width {
			out = append(out, line[:width])
			line = line[width:]
		}
		out = append(out, line)
	}
	return out
}
