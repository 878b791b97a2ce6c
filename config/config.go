// Package config persists terminal settings as JSON. Loading is
// tolerant: unknown keys are ignored and malformed values fall back to
// their defaults with a warning, so a hand-edited file never prevents
// startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const appDirName = "shellpty"

// Settings holds the user-tunable terminal options.
type Settings struct {
	// Shell names the interpreter to spawn; empty means detect from
	// the environment.
	Shell string

	// Rows and Cols are the initial dimensions.
	Rows uint16
	Cols uint16

	// PollInterval is the background reader cadence.
	PollInterval time.Duration

	// SettleDelay is the pause between writing a command and reading
	// its output.
	SettleDelay time.Duration

	// StripSequences are escape sequences removed from captured
	// output.
	StripSequences []string

	// OSC52Clipboard enables the terminal escape clipboard fallback.
	OSC52Clipboard bool
}

// Default returns the settings used when no file exists.
func Default() Settings {
	return Settings{
		Rows:           24,
		Cols:           80,
		PollInterval:   50 * time.Millisecond,
		SettleDelay:    100 * time.Millisecond,
		OSC52Clipboard: true,
	}
}

// Path returns the default config file location, created under the
// platform's user config directory.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate config dir: %w", err)
	}
	return filepath.Join(base, appDirName, "terminal.json"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Load reads settings from path. A missing file returns defaults with
// no error; a malformed file returns defaults for the broken fields and
// logs what was ignored.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}

	doc := string(data)
	if !gjson.Valid(doc) {
		slog.Warn("config file is not valid JSON, using defaults", "path", path)
		return s, nil
	}

	if v := gjson.Get(doc, "shell"); v.Exists() {
		s.Shell = v.String()
	}
	if v := gjson.Get(doc, "rows"); v.Exists() {
		s.Rows = clampDim(path, "rows", v.Int(), s.Rows)
	}
	if v := gjson.Get(doc, "cols"); v.Exists() {
		s.Cols = clampDim(path, "cols", v.Int(), s.Cols)
	}
	if v := gjson.Get(doc, "poll_interval_ms"); v.Exists() {
		s.PollInterval = clampInterval(path, "poll_interval_ms", v.Int(), s.PollInterval)
	}
	if v := gjson.Get(doc, "settle_delay_ms"); v.Exists() {
		s.SettleDelay = clampInterval(path, "settle_delay_ms", v.Int(), s.SettleDelay)
	}
	if v := gjson.Get(doc, "strip_sequences"); v.Exists() {
		if !v.IsArray() {
			slog.Warn("ignoring malformed config value", "path", path, "key", "strip_sequences")
		} else {
			s.StripSequences = []string{}
			for _, item := range v.Array() {
				s.StripSequences = append(s.StripSequences, item.String())
			}
		}
	}
	if v := gjson.Get(doc, "osc52_clipboard"); v.Exists() {
		s.OSC52Clipboard = v.Bool()
	}
	return s, nil
}

func clampDim(path, key string, v int64, fallback uint16) uint16 {
	if v <= 0 || v > 0xffff {
		slog.Warn("ignoring out-of-range config value", "path", path, "key", key, "value", v)
		return fallback
	}
	return uint16(v)
}

func clampInterval(path, key string, ms int64, fallback time.Duration) time.Duration {
	if ms <= 0 {
		slog.Warn("ignoring out-of-range config value", "path", path, "key", key, "value", ms)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Save writes settings to path, creating parent directories as needed.
func Save(path string, s Settings) error {
	doc := "{}"
	var err error
	set := func(key string, value any) {
		if err != nil {
			return
		}
		doc, err = sjson.Set(doc, key, value)
	}

	set("shell", s.Shell)
	set("rows", int(s.Rows))
	set("cols", int(s.Cols))
	set("poll_interval_ms", s.PollInterval.Milliseconds())
	set("settle_delay_ms", s.SettleDelay.Milliseconds())
	strip := s.StripSequences
	if strip == nil {
		strip = []string{}
	}
	set("strip_sequences", strip)
	set("osc52_clipboard", s.OSC52Clipboard)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(doc+"\n"), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
