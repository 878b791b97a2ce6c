package pty

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"eof", io.EOF, ErrProcessTerminated},
		{"unexpected eof", io.ErrUnexpectedEOF, ErrProcessTerminated},
		{"broken pipe", syscall.EPIPE, ErrProcessTerminated},
		{"closed file", fs.ErrClosed, ErrProcessTerminated},
		{"wrapped broken pipe", fmt.Errorf("write: %w", syscall.EPIPE), ErrProcessTerminated},
		{"other", errors.New("boom"), ErrCommunication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("classify(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyPreservesDetail(t *testing.T) {
	cause := errors.New("boom")
	got := classify(cause)
	if !errors.Is(got, cause) {
		t.Errorf("classify lost the underlying error: %v", got)
	}
}

func TestPlatformError(t *testing.T) {
	pe := platformErr("tcgetattr", syscall.EINVAL)
	var target *PlatformError
	if !errors.As(pe, &target) {
		t.Fatalf("platformErr did not produce a *PlatformError: %T", pe)
	}
	if target.Code != uintptr(syscall.EINVAL) {
		t.Errorf("Code = %#x, want %#x", target.Code, uintptr(syscall.EINVAL))
	}
	if !errors.Is(pe, syscall.EINVAL) {
		t.Error("PlatformError does not unwrap to the errno")
	}
}

func TestPlatformErrorCodeOnly(t *testing.T) {
	pe := &PlatformError{Op: "CreatePseudoConsole", Code: 0x8007000e}
	if pe.Error() == "" {
		t.Error("empty error string")
	}
	if pe.Unwrap() != nil {
		t.Error("Unwrap should be nil when no underlying error")
	}
}

func TestSignalControlBytes(t *testing.T) {
	tests := []struct {
		sig  Signal
		want byte
	}{
		{SignalInterrupt, 0x03},
		{SignalSuspend, 0x1a},
		{SignalEOF, 0x04},
		{SignalQuit, 0x1c},
	}
	for _, tt := range tests {
		if got := tt.sig.ControlByte(); got != tt.want {
			t.Errorf("ControlByte(%d) = %#x, want %#x", tt.sig, got, tt.want)
		}
	}
}

func TestDecodePermissive(t *testing.T) {
	if got := decode([]byte("hello")); got != "hello" {
		t.Errorf("decode(valid) = %q", got)
	}
	// A truncated multi-byte rune must not panic and must be replaced.
	got := decode([]byte{'h', 'i', 0xe2, 0x82})
	if got == "" {
		t.Error("decode dropped everything")
	}
	for _, r := range got {
		_ = r // iterating proves the result is valid UTF-8 under range
	}
}
