//go:build windows

package clipboard

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	kernel32Clip         = windows.NewLazySystemDLL("kernel32.dll")
	procOpenClipboard    = user32.NewProc("OpenClipboard")
	procCloseClipboard   = user32.NewProc("CloseClipboard")
	procEmptyClipboard   = user32.NewProc("EmptyClipboard")
	procSetClipboardData = user32.NewProc("SetClipboardData")
	procGetClipboardData = user32.NewProc("GetClipboardData")
	procGlobalAlloc      = kernel32Clip.NewProc("GlobalAlloc")
	procGlobalLock       = kernel32Clip.NewProc("GlobalLock")
	procGlobalUnlock     = kernel32Clip.NewProc("GlobalUnlock")
)

const (
	cfUnicodeText = 13
	gmemMoveable  = 0x0002
)

func nativeAvailable() bool { return procOpenClipboard.Find() == nil }

func setNative(text string) error {
	wide, err := windows.UTF16FromString(text)
	if err != nil {
		return fmt.Errorf("clipboard: encode: %w", err)
	}
	size := uintptr(len(wide) * 2)
	if size > maxTextSize {
		return fmt.Errorf("%w: %d bytes encoded", ErrTooLarge, size)
	}

	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		return fmt.Errorf("clipboard: OpenClipboard: %w", err)
	}
	defer procCloseClipboard.Call() //nolint:errcheck

	if r, _, err := procEmptyClipboard.Call(); r == 0 {
		return fmt.Errorf("clipboard: EmptyClipboard: %w", err)
	}

	handle, _, err := procGlobalAlloc.Call(gmemMoveable, size)
	if handle == 0 {
		return fmt.Errorf("clipboard: GlobalAlloc: %w", err)
	}
	locked, _, err := procGlobalLock.Call(handle)
	if locked == 0 {
		return fmt.Errorf("clipboard: GlobalLock: %w", err)
	}
	dst := unsafe.Slice((*uint16)(unsafe.Pointer(locked)), len(wide))
	copy(dst, wide)
	procGlobalUnlock.Call(handle) //nolint:errcheck

	// Ownership of the handle transfers to the system on success.
	if r, _, err := procSetClipboardData.Call(cfUnicodeText, handle); r == 0 {
		return fmt.Errorf("clipboard: SetClipboardData: %w", err)
	}
	return nil
}

func getNative() (string, error) {
	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		return "", fmt.Errorf("clipboard: OpenClipboard: %w", err)
	}
	defer procCloseClipboard.Call() //nolint:errcheck

	handle, _, err := procGetClipboardData.Call(cfUnicodeText)
	if handle == 0 {
		return "", fmt.Errorf("clipboard: no text data: %w", err)
	}
	locked, _, err := procGlobalLock.Call(handle)
	if locked == 0 {
		return "", fmt.Errorf("clipboard: GlobalLock: %w", err)
	}
	defer procGlobalUnlock.Call(handle) //nolint:errcheck

	// Bounded scan for the NUL terminator; the handle is system memory
	// another process wrote, so the terminator is not guaranteed.
	const maxWide = maxTextSize / 2
	buf := unsafe.Slice((*uint16)(unsafe.Pointer(locked)), maxWide)
	n := 0
	for n < maxWide && buf[n] != 0 {
		n++
	}
	if n == maxWide {
		return "", fmt.Errorf("%w: unterminated clipboard data", ErrTooLarge)
	}
	return windows.UTF16ToString(buf[:n]), nil
}
