package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func stubNative(t *testing.T, set func(string) error, get func() (string, error)) {
	t.Helper()
	origSet, origGet := setNativeText, getNativeText
	setNativeText, getNativeText = set, get
	t.Cleanup(func() { setNativeText, getNativeText = origSet, origGet })
}

func TestWriteOSC52Format(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOSC52(&buf, "hello"); err != nil {
		t.Fatalf("WriteOSC52: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte("hello"))
	out := buf.String()
	if !strings.Contains(out, "\x1b]52;c;"+encoded+"\x1b\\") {
		t.Errorf("missing ST-terminated form in %q", out)
	}
	if !strings.Contains(out, "\x1b]52;c;"+encoded+"\x07") {
		t.Errorf("missing BEL-terminated form in %q", out)
	}
}

func TestSetTextFallsBackToOSC52(t *testing.T) {
	stubNative(t,
		func(string) error { return ErrUnavailable },
		func() (string, error) { return "", ErrUnavailable })

	var term bytes.Buffer
	c := New().WithOSC52Fallback(&term)
	if err := c.SetText("fallback-probe"); err != nil {
		t.Fatalf("SetText with OSC 52 fallback: %v", err)
	}
	if !strings.Contains(term.String(), base64.StdEncoding.EncodeToString([]byte("fallback-probe"))) {
		t.Error("OSC 52 escape not emitted")
	}
	if got := c.Status().Method; got != MethodOSC52 {
		t.Errorf("method = %v, want osc52", got)
	}
}

func TestSetTextWithoutFallbackReturnsError(t *testing.T) {
	stubNative(t,
		func(string) error { return ErrUnavailable },
		func() (string, error) { return "", ErrUnavailable })

	c := New()
	if err := c.SetText("x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("SetText = %v, want ErrUnavailable", err)
	}
	if c.LastCopied() != "x" {
		t.Error("text not cached on native failure")
	}
}

func TestGetTextReturnsCacheOnFailure(t *testing.T) {
	stubNative(t,
		func(string) error { return ErrUnavailable },
		func() (string, error) { return "", ErrUnavailable })

	var term bytes.Buffer
	c := New().WithOSC52Fallback(&term)
	if err := c.SetText("cached-probe"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	got, err := c.GetText()
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if got != "cached-probe" {
		t.Errorf("GetText = %q, want cached text", got)
	}
	if c.Status().Method != MethodCached {
		t.Errorf("method = %v, want cached", c.Status().Method)
	}
}

func TestNativeRoundTripPreferred(t *testing.T) {
	store := ""
	stubNative(t,
		func(s string) error { store = s; return nil },
		func() (string, error) { return store, nil })

	c := New().WithOSC52Fallback(&bytes.Buffer{})
	if err := c.SetText("native-probe"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	got, err := c.GetText()
	if err != nil || got != "native-probe" {
		t.Fatalf("GetText = (%q, %v)", got, err)
	}
	if c.Status().Method != MethodNative {
		t.Errorf("method = %v, want native", c.Status().Method)
	}
}

func TestTransientFailureRetried(t *testing.T) {
	calls := 0
	stubNative(t,
		func(string) error {
			calls++
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		},
		func() (string, error) { return "", ErrUnavailable })

	c := New()
	if err := c.SetText("retry-probe"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if calls != 2 {
		t.Errorf("native called %d times, want 2", calls)
	}
}

func TestUnavailableNotRetried(t *testing.T) {
	calls := 0
	stubNative(t,
		func(string) error { calls++; return ErrUnavailable },
		func() (string, error) { return "", ErrUnavailable })

	c := New()
	c.SetText("x") //nolint:errcheck
	if calls != 1 {
		t.Errorf("ErrUnavailable retried %d times, want 1 attempt", calls)
	}
}

func TestLastCopiedTracking(t *testing.T) {
	stubNative(t,
		func(string) error { return nil },
		func() (string, error) { return "", nil })

	c := New()
	for _, text := range []string{"first", "second", "third"} {
		if err := c.SetText(text); err != nil {
			t.Fatalf("SetText(%q): %v", text, err)
		}
		if c.LastCopied() != text {
			t.Errorf("LastCopied = %q, want %q", c.LastCopied(), text)
		}
	}
}

func TestMethodNames(t *testing.T) {
	for m, want := range map[Method]string{
		MethodNative: "native",
		MethodOSC52:  "osc52",
		MethodCached: "cached",
	} {
		if m.String() != want {
			t.Errorf("Method(%d).String() = %q, want %q", m, m.String(), want)
		}
	}
}
