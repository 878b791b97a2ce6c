// Package clipboard copies text to and from the system clipboard with
// a fallback chain: the platform's native mechanism first, then the
// OSC 52 terminal escape when enabled, then an in-process cache for
// reads. Native access shells out to the platform tool on Unix and
// talks to the user32 clipboard API on Windows.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrUnavailable means no native clipboard mechanism exists in this
	// environment (headless session, missing tool).
	ErrUnavailable = errors.New("clipboard: no clipboard mechanism available")

	// ErrTooLarge means the text exceeds the clipboard size limit.
	ErrTooLarge = errors.New("clipboard: text too large")
)

const (
	// maxTextSize bounds a single clipboard payload.
	maxTextSize = 100 << 20

	toolTimeout = 2 * time.Second
	retryDelay  = 50 * time.Millisecond
)

// Test seams over the per-platform implementations.
var (
	setNativeText = setNative
	getNativeText = getNative
	nativeReady   = nativeAvailable
)

// Method identifies which mechanism satisfied the last operation.
type Method int

const (
	MethodNative Method = iota
	MethodOSC52
	MethodCached
)

func (m Method) String() string {
	switch m {
	case MethodNative:
		return "native"
	case MethodOSC52:
		return "osc52"
	case MethodCached:
		return "cached"
	}
	return "unknown"
}

// Status is a diagnostic snapshot of the clipboard state.
type Status struct {
	Method          Method
	NativeAvailable bool
	OSC52Enabled    bool
	LastError       string
}

// Clipboard is a cross-platform clipboard handle. The zero value is
// not usable; construct with New.
type Clipboard struct {
	mu       sync.Mutex
	osc52    io.Writer // nil disables the OSC 52 fallback
	lastCopy string
	method   Method
	lastErr  error
	retries  int
}

// New returns a clipboard using only the native mechanism.
func New() *Clipboard {
	return &Clipboard{retries: 3}
}

// WithOSC52Fallback enables the OSC 52 escape fallback, emitted to w
// (normally the terminal's stdout) when the native clipboard fails.
func (c *Clipboard) WithOSC52Fallback(w io.Writer) *Clipboard {
	c.osc52 = w
	return c
}

// WithMaxRetries sets how many times transient native failures are
// retried before falling back.
func (c *Clipboard) WithMaxRetries(n int) *Clipboard {
	if n > 0 {
		c.retries = n
	}
	return c
}

// SetText copies text to the clipboard. The native mechanism is tried
// with retries; on persistent failure the OSC 52 escape is emitted when
// enabled. The text is always cached for GetText fallback.
func (c *Clipboard) SetText(text string) error {
	if len(text) > maxTextSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(text))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCopy = text

	var nativeErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		nativeErr = setNativeText(text)
		if nativeErr == nil {
			c.method = MethodNative
			c.lastErr = nil
			return nil
		}
		if errors.Is(nativeErr, ErrUnavailable) || errors.Is(nativeErr, ErrTooLarge) {
			break
		}
		time.Sleep(retryDelay * time.Duration(attempt+1))
	}

	if c.osc52 == nil {
		c.lastErr = nativeErr
		return nativeErr
	}

	slog.Warn("native clipboard failed, falling back to OSC 52", "error", nativeErr)
	if err := WriteOSC52(c.osc52, text); err != nil {
		c.lastErr = err
		return err
	}
	c.method = MethodOSC52
	c.lastErr = nativeErr
	return nil
}

// GetText reads the clipboard. When the native read fails and the
// fallback chain is enabled, the most recent SetText payload is
// returned instead.
func (c *Clipboard) GetText() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var nativeErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		text, err := getNativeText()
		if err == nil {
			c.method = MethodNative
			c.lastErr = nil
			return text, nil
		}
		nativeErr = err
		if errors.Is(err, ErrUnavailable) {
			break
		}
		time.Sleep(retryDelay * time.Duration(attempt+1))
	}

	if c.osc52 != nil && c.lastCopy != "" {
		slog.Warn("native clipboard read failed, returning cached text", "error", nativeErr)
		c.method = MethodCached
		c.lastErr = nativeErr
		return c.lastCopy, nil
	}
	c.lastErr = nativeErr
	return "", nativeErr
}

// LastCopied returns the most recent text passed to SetText.
func (c *Clipboard) LastCopied() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCopy
}

// Status reports which mechanism is active and the last error seen.
func (c *Clipboard) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Method:          c.method,
		NativeAvailable: nativeReady(),
		OSC52Enabled:    c.osc52 != nil,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// WriteOSC52 emits the OSC 52 clipboard escape for text to w. Both the
// ST and BEL terminated forms are written; terminals ignore the one
// they do not recognize.
func WriteOSC52(w io.Writer, text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	if _, err := fmt.Fprintf(w, "\x1b]52;c;%s\x1b\\", encoded); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\x1b]52;c;%s\x07", encoded)
	return err
}
