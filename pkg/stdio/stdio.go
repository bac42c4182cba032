// Package stdio implements the standard-I/O plumbing between programs and
// the init daemon: a bounded byte ring buffer pair (stdin, stdout) of
// equal fixed capacity, with blocking getch/putch built directly on
// ksync.Queue, specialized to one-byte items.
package stdio

import (
	"time"

	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/ksync"
)

// Sentinel bytes a program writes to stdout immediately before returning;
// the pump loop (pkg/boot) interprets either as end-of-program.
const (
	StatusOK    byte = 0x00
	StatusError byte = 0x01
)

// DefaultCapacity is the stdio ring buffer depth used when no explicit
// capacity is configured.
const DefaultCapacity = 256

// Pair is one program's private stdin/stdout ring buffer pair, created by
// the caller of appreg.Spawn (pkg/boot.Kernel.Run makes a fresh one) and
// dropped once the pump loop observes a status sentinel on stdout.
type Pair struct {
	stdin  *ksync.Queue
	stdout *ksync.Queue
}

// NewPair creates a stdio pair with the given per-side capacity.
func NewPair(capacity int) *Pair {
	return &Pair{
		stdin:  ksync.NewQueue(capacity, 1),
		stdout: ksync.NewQueue(capacity, 1),
	}
}

// Getch blocks up to timeout for one byte from stdin_buf. A program calls
// this; timeout == ksync.MaxDelay blocks until a byte arrives.
func (p *Pair) Getch(timeout time.Duration) (byte, kernerr.Error) {
	buf := make([]byte, 1)
	if err := p.stdin.Receive(buf, timeout); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Putch blocks up to timeout to write one byte to stdout_buf. A program
// calls this; writing StatusOK or StatusError signals end-of-program to
// the pump loop.
func (p *Pair) Putch(b byte, timeout time.Duration) kernerr.Error {
	return p.stdout.Send([]byte{b}, timeout)
}

// PumpStdinByte enqueues b into stdin_buf without blocking, dropping it if
// the buffer is full. Called by the init daemon's pump loop after a
// non-blocking console input probe.
func (p *Pair) PumpStdinByte(b byte) {
	_ = p.stdin.Send([]byte{b}, 0)
}

// PumpStdoutByte dequeues one byte from stdout_buf without blocking. ok is
// false if stdout_buf is currently empty. Called by the init daemon's pump
// loop.
func (p *Pair) PumpStdoutByte() (b byte, ok bool) {
	buf := make([]byte, 1)
	if err := p.stdout.Receive(buf, 0); err != nil {
		return 0, false
	}
	return buf[0], true
}
