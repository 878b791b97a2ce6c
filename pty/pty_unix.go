//go:build linux || darwin

package pty

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	creack "github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/dshills/shellpty/shell"
)

// unixBackend drives a child attached to a POSIX pty device. The master
// descriptor is used raw (unix.Read/Write/Poll) so blocking and
// non-blocking reads can coexist without fighting the runtime poller.
type unixBackend struct {
	sh     shell.Shell
	cmd    *exec.Cmd
	master *os.File
	fd     int

	exited    chan struct{}
	closeOnce sync.Once
}

func newBackend(sh shell.Shell, rows, cols uint16) (Backend, error) {
	path, err := exec.LookPath(sh.Command())
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrSpawnFailed, sh.Command())
	}

	cmd := exec.Command(path, sh.Args()...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	master, err := creack.StartWithSize(cmd, &creack.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	b := &unixBackend{
		sh:     sh,
		cmd:    cmd,
		master: master,
		fd:     int(master.Fd()),
		exited: make(chan struct{}),
	}
	go b.watch()
	return b, nil
}

// watch reaps the child so it never lingers as a zombie.
func (b *unixBackend) watch() {
	_ = b.cmd.Wait()
	close(b.exited)
}

func (b *unixBackend) SetEcho(on bool) error {
	tio, err := unix.IoctlGetTermios(b.fd, ioctlReadTermios)
	if err != nil {
		return platformErr("tcgetattr", err)
	}
	if on {
		tio.Lflag |= unix.ECHO
	} else {
		tio.Lflag &^= unix.ECHO
	}
	if err := unix.IoctlSetTermios(b.fd, ioctlWriteTermios, tio); err != nil {
		return platformErr("tcsetattr", err)
	}
	return nil
}

func (b *unixBackend) WriteInput(s string) error {
	if !b.IsAlive() {
		return ErrProcessTerminated
	}
	data := []byte(s)
	for len(data) > 0 {
		n, err := unix.Write(b.fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return classify(platformErr("write", err))
		}
		data = data[n:]
	}
	return nil
}

func (b *unixBackend) ReadOutput() (string, error) {
	// Bounded rather than truly indefinite: a silent child should not
	// wedge the consumer thread forever.
	ready, err := b.waitReadable(blockingReadTimeout)
	if err != nil {
		return "", err
	}
	if !ready {
		return "", nil
	}
	return b.readOnce()
}

func (b *unixBackend) TryReadOutput() (string, error) {
	if err := unix.SetNonblock(b.fd, true); err != nil {
		return "", platformErr("set nonblock", err)
	}
	defer unix.SetNonblock(b.fd, false) //nolint:errcheck

	ready, err := b.waitReadable(readyTimeout)
	if err != nil {
		return "", err
	}
	if !ready {
		return "", nil
	}
	return b.readOnce()
}

// waitReadable polls the master for readability for at most the given
// timeout. It reports false when no data arrived, which is success.
func (b *unixBackend) waitReadable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, platformErr("poll", err)
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		return true, nil
	}
	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
		return false, ErrProcessTerminated
	}
	return false, nil
}

// readOnce performs exactly one bounded read of whatever is available.
func (b *unixBackend) readOnce() (string, error) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := unix.Read(b.fd, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return "", nil
		case err == unix.EIO:
			// A pty master raises EIO once the slave side is gone.
			return "", ErrProcessTerminated
		case err != nil:
			return "", classify(platformErr("read", err))
		case n == 0:
			return "", ErrProcessTerminated
		}
		return decode(buf[:n]), nil
	}
}

func (b *unixBackend) Resize(rows, cols uint16) error {
	if !b.IsAlive() {
		return ErrProcessTerminated
	}
	if err := creack.Setsize(b.master, &creack.Winsize{Rows: rows, Cols: cols}); err != nil {
		return platformErr("resize", err)
	}
	return nil
}

func (b *unixBackend) Size() (uint16, uint16, error) {
	ws, err := creack.GetsizeFull(b.master)
	if err != nil {
		return 0, 0, platformErr("winsize", err)
	}
	return ws.Rows, ws.Cols, nil
}

func (b *unixBackend) IsAlive() bool {
	select {
	case <-b.exited:
		return false
	default:
		return true
	}
}

func (b *unixBackend) Signal(sig Signal) error {
	// The line discipline translates the control byte into the real
	// signal for the foreground process group, as a terminal would.
	return b.WriteInput(string(rune(sig.ControlByte())))
}

func (b *unixBackend) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		// Graceful first: ask the shell to exit.
		_, _ = unix.Write(b.fd, []byte("exit\n"))
		select {
		case <-b.exited:
		case <-time.After(gracePeriod):
			if b.cmd.Process != nil {
				_ = b.cmd.Process.Kill()
			}
			select {
			case <-b.exited:
			case <-time.After(killWait):
			}
		}

		closeErr = b.master.Close()
	})
	return closeErr
}
