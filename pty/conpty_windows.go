//go:build windows

package pty

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/dshills/shellpty/shell"
)

var (
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procCreatePseudoConsole = kernel32.NewProc("CreatePseudoConsole")
	procResizePseudoConsole = kernel32.NewProc("ResizePseudoConsole")
	procClosePseudoConsole  = kernel32.NewProc("ClosePseudoConsole")
)

// conptyAvailable reports whether the pseudo-console entry points exist
// in kernel32. A symbol probe, not an OS build-number comparison: a
// point release could ship or omit the feature either way.
func conptyAvailable() bool {
	return procCreatePseudoConsole.Find() == nil
}

// coord packs (cols, rows) into the COORD value the pseudo-console API
// takes by value: X in the low word, Y in the high word.
func coord(cols, rows uint16) uintptr {
	return uintptr(cols) | uintptr(rows)<<16
}

// conptyBackend is the native tier: it owns the pseudo-console handle,
// the child process handle, and the two pipe ends ConPTY does not own.
//
// A dedicated goroutine performs blocking reads on the output pipe into
// a mutex-guarded byte queue; every external read is served from that
// queue, decoupling the child's I/O cadence from the consumer's polling
// cadence.
type conptyBackend struct {
	sh shell.Shell

	hpc     windows.Handle // pseudo-console
	process windows.Handle
	pipeIn  windows.Handle // write end -> child stdin
	pipeOut windows.Handle // read end <- child stdout

	mu    sync.Mutex // guards queue and size
	queue []byte
	rows  uint16
	cols  uint16

	reading    atomic.Bool // cleared to stop the reader goroutine
	readerDone chan struct{}
	exited     chan struct{}
	closeOnce  sync.Once
}

func newConptyBackend(sh shell.Shell, rows, cols uint16) (Backend, error) {
	var inRead, inWrite, outRead, outWrite windows.Handle

	if err := windows.CreatePipe(&inRead, &inWrite, nil, pipeBufferSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed, platformErr("CreatePipe", err))
	}
	if err := windows.CreatePipe(&outRead, &outWrite, nil, pipeBufferSize); err != nil {
		windows.CloseHandle(inRead)
		windows.CloseHandle(inWrite)
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed, platformErr("CreatePipe", err))
	}

	// The ends we keep must never leak into the child.
	_ = windows.SetHandleInformation(inWrite, windows.HANDLE_FLAG_INHERIT, 0)
	_ = windows.SetHandleInformation(outRead, windows.HANDLE_FLAG_INHERIT, 0)

	var hpc windows.Handle
	r1, _, _ := procCreatePseudoConsole.Call(
		coord(cols, rows),
		uintptr(inRead),
		uintptr(outWrite),
		0,
		uintptr(unsafe.Pointer(&hpc)),
	)
	if r1 != 0 { // S_OK
		windows.CloseHandle(inRead)
		windows.CloseHandle(inWrite)
		windows.CloseHandle(outRead)
		windows.CloseHandle(outWrite)
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed,
			&PlatformError{Op: "CreatePseudoConsole", Code: r1})
	}

	// ConPTY owns these ends now; release our references.
	windows.CloseHandle(inRead)
	windows.CloseHandle(outWrite)

	process, err := spawnWithConsole(hpc, sh)
	if err != nil {
		procClosePseudoConsole.Call(uintptr(hpc))
		windows.CloseHandle(inWrite)
		windows.CloseHandle(outRead)
		return nil, err
	}

	b := &conptyBackend{
		sh:         sh,
		hpc:        hpc,
		process:    process,
		pipeIn:     inWrite,
		pipeOut:    outRead,
		rows:       rows,
		cols:       cols,
		readerDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	b.reading.Store(true)
	go b.readLoop()
	go b.watch()
	return b, nil
}

// spawnWithConsole launches the shell with a proc-thread attribute list
// binding the pseudo-console handle, so the child's console is the
// pseudo-console rather than any inherited one.
func spawnWithConsole(hpc windows.Handle, sh shell.Shell) (windows.Handle, error) {
	cmdline, err := windows.UTF16PtrFromString(
		strings.Join(append([]string{sh.Command()}, sh.Args()...), " "))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	attrs, err := windows.NewProcThreadAttributeList(1)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInitializationFailed, platformErr("InitializeProcThreadAttributeList", err))
	}
	defer attrs.Delete()

	// The attribute value is the HPCON value itself, not a pointer to
	// it; the API reads the handle from this address.
	if err := attrs.Update(
		windows.PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE,
		unsafe.Pointer(hpc),
		unsafe.Sizeof(hpc),
	); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInitializationFailed, platformErr("UpdateProcThreadAttribute", err))
	}

	si := new(windows.StartupInfoEx)
	si.Cb = uint32(unsafe.Sizeof(*si))
	si.ProcThreadAttributeList = attrs.List()

	pi := new(windows.ProcessInformation)
	flags := uint32(windows.EXTENDED_STARTUPINFO_PRESENT | windows.CREATE_UNICODE_ENVIRONMENT)
	if err := windows.CreateProcess(
		nil, cmdline, nil, nil, false, flags, nil, nil,
		&si.StartupInfo, pi,
	); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, platformErr("CreateProcess", err))
	}

	windows.CloseHandle(pi.Thread)
	return pi.Process, nil
}

// readLoop blocks on the output pipe and appends to the shared queue
// until the liveness flag is cleared or the pipe breaks.
func (b *conptyBackend) readLoop() {
	defer close(b.readerDone)
	buf := make([]byte, pipeBufferSize)
	for b.reading.Load() {
		var n uint32
		err := windows.ReadFile(b.pipeOut, buf, &n, nil)
		if n > 0 {
			b.mu.Lock()
			b.queue = append(b.queue, buf[:n]...)
			b.mu.Unlock()
		}
		if err != nil {
			// Broken pipe: the console or the child is gone.
			return
		}
	}
}

func (b *conptyBackend) watch() {
	windows.WaitForSingleObject(b.process, windows.INFINITE)
	close(b.exited)
}

// drain empties the shared queue and returns its decoded contents.
func (b *conptyBackend) drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return ""
	}
	out := decode(b.queue)
	b.queue = b.queue[:0]
	return out
}

func (b *conptyBackend) SetEcho(on bool) error {
	// ConPTY exposes no line-discipline echo control; the shell inside
	// the pseudo-console decides what it echoes.
	return nil
}

func (b *conptyBackend) WriteInput(s string) error {
	if !b.IsAlive() {
		return ErrProcessTerminated
	}
	data := []byte(s)
	var n uint32
	if err := windows.WriteFile(b.pipeIn, data, &n, nil); err != nil {
		return classify(platformErr("WriteFile", err))
	}
	return nil
}

func (b *conptyBackend) ReadOutput() (string, error) {
	deadline := time.Now().Add(blockingReadTimeout)
	for {
		if out := b.drain(); out != "" {
			return out, nil
		}
		if !b.IsAlive() {
			return "", ErrProcessTerminated
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (b *conptyBackend) TryReadOutput() (string, error) {
	out := b.drain()
	if out == "" && !b.IsAlive() {
		return "", ErrProcessTerminated
	}
	return out, nil
}

func (b *conptyBackend) Resize(rows, cols uint16) error {
	if !b.IsAlive() {
		return ErrProcessTerminated
	}
	r1, _, _ := procResizePseudoConsole.Call(uintptr(b.hpc), coord(cols, rows))
	if r1 != 0 {
		return &PlatformError{Op: "ResizePseudoConsole", Code: r1}
	}
	b.mu.Lock()
	b.rows, b.cols = rows, cols
	b.mu.Unlock()
	return nil
}

func (b *conptyBackend) Size() (uint16, uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows, b.cols, nil
}

func (b *conptyBackend) IsAlive() bool {
	var code uint32
	if err := windows.GetExitCodeProcess(b.process, &code); err != nil {
		return false
	}
	return code == uint32(windows.STILL_ACTIVE)
}

func (b *conptyBackend) Signal(sig Signal) error {
	return b.WriteInput(string(rune(sig.ControlByte())))
}

func (b *conptyBackend) Close() error {
	b.closeOnce.Do(func() {
		b.reading.Store(false)

		// Graceful first: interrupt, then a short grace window.
		var n uint32
		_ = windows.WriteFile(b.pipeIn, []byte{SignalInterrupt.ControlByte()}, &n, nil)
		windows.WaitForSingleObject(b.process, uint32(gracePeriod.Milliseconds()))

		// Closing the pseudo-console tells the child its console is
		// gone and breaks the output pipe, unblocking the reader.
		procClosePseudoConsole.Call(uintptr(b.hpc))

		if b.IsAlive() {
			_ = windows.TerminateProcess(b.process, 1)
			windows.WaitForSingleObject(b.process, uint32(killWait.Milliseconds()))
		}

		select {
		case <-b.readerDone:
		case <-time.After(gracePeriod):
		}

		windows.CloseHandle(b.pipeIn)
		windows.CloseHandle(b.pipeOut)
		windows.CloseHandle(b.process)
	})
	return nil
}
