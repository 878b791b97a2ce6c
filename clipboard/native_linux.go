//go:build linux

package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// tool is the external clipboard helper selected for this session.
type tool struct {
	copyCmd  []string
	pasteCmd []string
}

var (
	toolOnce sync.Once
	toolSel  *tool
)

// detectTool picks a clipboard helper once per process, preferring the
// one that matches the display session (wl-clipboard on Wayland, xclip
// or xsel on X11).
func detectTool() *tool {
	toolOnce.Do(func() {
		wlCopy := &tool{
			copyCmd:  []string{"wl-copy"},
			pasteCmd: []string{"wl-paste", "--no-newline"},
		}
		xclip := &tool{
			copyCmd:  []string{"xclip", "-selection", "clipboard"},
			pasteCmd: []string{"xclip", "-selection", "clipboard", "-out"},
		}
		xsel := &tool{
			copyCmd:  []string{"xsel", "--clipboard", "--input"},
			pasteCmd: []string{"xsel", "--clipboard", "--output"},
		}

		ordered := []*tool{xclip, xsel, wlCopy}
		if isWayland() {
			ordered = []*tool{wlCopy, xclip, xsel}
		}
		for _, t := range ordered {
			if _, err := exec.LookPath(t.copyCmd[0]); err == nil {
				toolSel = t
				return
			}
		}
	})
	return toolSel
}

func isWayland() bool {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return true
	}
	return strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "wayland")
}

func nativeAvailable() bool { return detectTool() != nil }

func setNative(text string) error {
	t := detectTool()
	if t == nil {
		return fmt.Errorf("%w: install xclip, xsel, or wl-clipboard", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, t.copyCmd[0], t.copyCmd[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard: %s: %w", t.copyCmd[0], err)
	}
	return nil
}

func getNative() (string, error) {
	t := detectTool()
	if t == nil {
		return "", fmt.Errorf("%w: install xclip, xsel, or wl-clipboard", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, t.pasteCmd[0], t.pasteCmd[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("clipboard: %s: %w", t.pasteCmd[0], err)
	}
	return out.String(), nil
}
