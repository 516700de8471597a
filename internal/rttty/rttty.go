// Package rttty opens the shared tty endpoint to the real-time core and
// configures it for raw binary I/O: canonical mode, echo, and signal
// character handling all disabled, so control bytes in a wire frame are
// never reinterpreted by the line discipline.
package rttty

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Port is an opened, raw-mode tty endpoint with select-based timeout reads.
type Port struct {
	f    *os.File
	fd   int
	saved *term.State
}

// Open opens path read-write and switches it to raw mode (ICANON, ECHO,
// ISIG cleared; VMIN=1, VTIME=0), matching configure_tty_raw in the
// reference client.
func Open(path string) (*Port, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("rttty: open %s: %w", path, err)
	}

	fd := int(f.Fd())
	saved, err := term.GetState(fd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("rttty: get state: %w", err)
	}

	if _, err := term.MakeRaw(fd); err != nil {
		f.Close()
		return nil, fmt.Errorf("rttty: make raw: %w", err)
	}

	return &Port{f: f, fd: fd, saved: saved}, nil
}

// Close restores the tty's original mode and closes the file.
func (p *Port) Close() error {
	if p.saved != nil {
		term.Restore(p.fd, p.saved)
	}
	return p.f.Close()
}

// WriteAll writes the whole buffer, retrying on short writes.
func (p *Port) WriteAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := p.f.Write(buf)
		if err != nil {
			return fmt.Errorf("rttty: write: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// ErrTimeout is returned by ReadExact when no data arrives before the
// deadline.
var ErrTimeout = fmt.Errorf("rttty: read timed out")

// ReadExact reads exactly n bytes, each chunk preceded by a select-with-
// timeout wait, mirroring read_exact/wait_for_data in the reference
// client. timeout applies to each individual wait, not to the whole call.
func (p *Port) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		ready, err := p.waitReadable(timeout)
		if err != nil {
			return nil, fmt.Errorf("rttty: select: %w", err)
		}
		if !ready {
			return nil, ErrTimeout
		}

		m, err := p.f.Read(buf[read:])
		if err != nil {
			return nil, fmt.Errorf("rttty: read: %w", err)
		}
		if m == 0 {
			return buf[:read], fmt.Errorf("rttty: unexpected EOF after %d/%d bytes", read, n)
		}
		read += m
	}
	return buf, nil
}

func (p *Port) waitReadable(timeout time.Duration) (bool, error) {
	fdSet := &unix.FdSet{}
	fdSetAdd(fdSet, p.fd)

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(p.fd+1, fdSet, nil, nil, &tv)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}

// fdSetAdd sets bit fd in an unix.FdSet (FD_SET), which x/sys/unix exposes
// as a plain bitmask struct with no helper methods.
func fdSetAdd(set *unix.FdSet, fd int) {
	const bitsPerWord = 64
	set.Bits[fd/bitsPerWord] |= int64(1) << (uint(fd) % bitsPerWord)
}
