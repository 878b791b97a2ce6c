package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terminal.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if !reflect.DeepEqual(s, Default()) {
		t.Errorf("Load = %+v, want defaults", s)
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeTemp(t, `{
		"shell": "zsh",
		"rows": 40,
		"cols": 120,
		"poll_interval_ms": 25,
		"settle_delay_ms": 200,
		"strip_sequences": ["[?2004l\r\r\n"],
		"osc52_clipboard": false
	}`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Shell != "zsh" || s.Rows != 40 || s.Cols != 120 {
		t.Errorf("scalar fields = %+v", s)
	}
	if s.PollInterval != 25*time.Millisecond || s.SettleDelay != 200*time.Millisecond {
		t.Errorf("durations = %v, %v", s.PollInterval, s.SettleDelay)
	}
	if len(s.StripSequences) != 1 || s.StripSequences[0] != "\x1b[?2004l\r\r\n" {
		t.Errorf("strip sequences = %q", s.StripSequences)
	}
	if s.OSC52Clipboard {
		t.Error("osc52_clipboard not honored")
	}
}

func TestLoadMalformedJSONFallsBack(t *testing.T) {
	path := writeTemp(t, `{not json`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load malformed: %v", err)
	}
	if !reflect.DeepEqual(s, Default()) {
		t.Errorf("malformed file should yield defaults, got %+v", s)
	}
}

func TestLoadOutOfRangeValuesFallBack(t *testing.T) {
	path := writeTemp(t, `{"rows": -5, "cols": 70000, "poll_interval_ms": 0}`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Default()
	if s.Rows != d.Rows || s.Cols != d.Cols || s.PollInterval != d.PollInterval {
		t.Errorf("out-of-range values not rejected: %+v", s)
	}
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	path := writeTemp(t, `{"shell": "fish"}`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Shell != "fish" {
		t.Errorf("shell = %q", s.Shell)
	}
	if s.Rows != Default().Rows || s.PollInterval != Default().PollInterval {
		t.Error("unset fields lost their defaults")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "terminal.json")
	want := Settings{
		Shell:          "bash",
		Rows:           30,
		Cols:           100,
		PollInterval:   75 * time.Millisecond,
		SettleDelay:    150 * time.Millisecond,
		StripSequences: []string{"\x1b[?2004l\r\r\n", "\x1b[K"},
		OSC52Clipboard: true,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaveEmptyStripListSurvives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminal.json")
	want := Default()
	want.StripSequences = []string{}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StripSequences == nil || len(got.StripSequences) != 0 {
		t.Errorf("empty strip list became %#v", got.StripSequences)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~"); got != home {
		t.Errorf("ExpandHome(~) = %q, want %q", got, home)
	}
	if got := ExpandHome("~/work"); got != filepath.Join(home, "work") {
		t.Errorf("ExpandHome(~/work) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path modified: %q", got)
	}
	if runtime.GOOS != "windows" {
		if got := ExpandHome("~user/x"); got != "~user/x" {
			t.Errorf("~user form should pass through, got %q", got)
		}
	}
}

func TestPathUnderConfigDir(t *testing.T) {
	p, err := Path()
	if err != nil {
		t.Skip("no user config dir in this environment")
	}
	if filepath.Base(filepath.Dir(p)) != appDirName {
		t.Errorf("config path %q not under %s directory", p, appDirName)
	}
}
