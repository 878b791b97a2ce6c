//go:build windows

package pty

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UserExistsError/conpty"

	"github.com/dshills/shellpty/shell"
)

// fallbackBackend is the portable tier: a library-mediated pseudo
// console used when the native tier is unavailable or fails at
// construction. It mirrors the native tier's observable contract,
// including the background reader feeding a shared queue.
type fallbackBackend struct {
	sh   shell.Shell
	cpty *conpty.ConPty

	mu    sync.Mutex // guards queue and size
	queue []byte
	rows  uint16
	cols  uint16

	reading    atomic.Bool
	readerDone chan struct{}
	exited     chan struct{}
	closeOnce  sync.Once
}

func newFallbackBackend(sh shell.Shell, rows, cols uint16) (Backend, error) {
	cmdline := strings.Join(append([]string{sh.Command()}, sh.Args()...), " ")
	cpty, err := conpty.Start(cmdline, conpty.ConPtyDimensions(int(cols), int(rows)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	b := &fallbackBackend{
		sh:         sh,
		cpty:       cpty,
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

func (b *fallbackBackend) readLoop() {
	defer close(b.readerDone)
	buf := make([]byte, pipeBufferSize)
	for b.reading.Load() {
		n, err := b.cpty.Read(buf)
		if n > 0 {
			b.mu.Lock()
			b.queue = append(b.queue, buf[:n]...)
			b.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (b *fallbackBackend) watch() {
	_, _ = b.cpty.Wait(context.Background())
	close(b.exited)
}

func (b *fallbackBackend) drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return ""
	}
	out := decode(b.queue)
	b.queue = b.queue[:0]
	return out
}

func (b *fallbackBackend) SetEcho(on bool) error {
	// Echo inside a pseudo console is the shell's business.
	return nil
}

func (b *fallbackBackend) WriteInput(s string) error {
	if !b.IsAlive() {
		return ErrProcessTerminated
	}
	if _, err := b.cpty.Write([]byte(s)); err != nil {
		return classify(err)
	}
	return nil
}

func (b *fallbackBackend) ReadOutput() (string, error) {
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

func (b *fallbackBackend) TryReadOutput() (string, error) {
	out := b.drain()
	if out == "" && !b.IsAlive() {
		return "", ErrProcessTerminated
	}
	return out, nil
}

func (b *fallbackBackend) Resize(rows, cols uint16) error {
	if !b.IsAlive() {
		return ErrProcessTerminated
	}
	if err := b.cpty.Resize(int(cols), int(rows)); err != nil {
		return platformErr("resize", err)
	}
	b.mu.Lock()
	b.rows, b.cols = rows, cols
	b.mu.Unlock()
	return nil
}

func (b *fallbackBackend) Size() (uint16, uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows, b.cols, nil
}

func (b *fallbackBackend) IsAlive() bool {
	select {
	case <-b.exited:
		return false
	default:
		return true
	}
}

func (b *fallbackBackend) Signal(sig Signal) error {
	return b.WriteInput(string(rune(sig.ControlByte())))
}

func (b *fallbackBackend) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.reading.Store(false)

		_, _ = b.cpty.Write([]byte{SignalInterrupt.ControlByte()})
		select {
		case <-b.exited:
		case <-time.After(gracePeriod):
		}

		// Close terminates the child and releases console and pipe
		// handles in one step.
		closeErr = b.cpty.Close()

		select {
		case <-b.readerDone:
		case <-time.After(gracePeriod):
		}
	})
	return closeErr
}
