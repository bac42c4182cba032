// Package console implements a driver.Descriptor wrapping an io.Reader
// and io.Writer (typically the process's real stdin/stdout) as the
// platform console device bootstrap initializes first.
package console

import (
	"bufio"
	"io"
	"sync"

	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// Name is the driver name this package registers under.
const Name = "console"

// inputBacklog bounds how many bytes the background reader goroutine may
// have pulled from r and not yet handed to a probing Read before it blocks
// on the underlying reader again.
const inputBacklog = 256

type state struct {
	out io.Writer

	mu       sync.Mutex
	baudrate uint32

	in   chan byte
	rerr chan error
}

// New returns the descriptor bootstrap registers with a driver.Framework,
// reading from r and writing to w. r is drained by a background goroutine
// into a channel so that read can offer a true non-blocking probe: a
// bufio.Reader's Buffered() count only reflects bytes a previous Read has
// already pulled in, so checking it without first reading would leave the
// probe permanently reporting no input on a reader that blocks until data
// arrives, such as os.Stdin.
func New(r io.Reader, w io.Writer) driver.Descriptor {
	return driver.Descriptor{
		Name: Name,
		Ops: driver.Ops{
			Init: func(int, int, string, any) (driver.State, kernerr.Error) {
				st := &state{out: w, baudrate: 115200, in: make(chan byte, inputBacklog), rerr: make(chan error, 1)}
				go st.pump(r)
				return st, nil
			},
			Open:  func(driver.State, driver.OpenFlags) kernerr.Error { return nil },
			Close: func(driver.State, bool) kernerr.Error { return nil },
			Read:  read,
			Write: write,
			Ioctl: ioctl,
			Flush: func(driver.State) kernerr.Error { return nil },
			Stat: func(driver.State) (driver.Stat, kernerr.Error) {
				return driver.Stat{Kind: driver.KindChar, Permissions: 0644}, nil
			},
		},
	}
}

// pump reads one byte at a time from r and forwards it to in, blocking on
// the channel (not on the caller) once the backlog is full. It exits once r
// returns an error, recording it for the next probing Read to surface.
func (st *state) pump(r io.Reader) {
	buffered := bufio.NewReader(r)
	for {
		b, err := buffered.ReadByte()
		if err != nil {
			st.rerr <- err
			return
		}
		st.in <- b
	}
}

// read never blocks: it returns kernerr.Timeout immediately when no input
// byte has arrived from the background pump yet, which is exactly the
// non-blocking probe the init daemon's pump loop needs.
func read(s driver.State, dst []byte, _ int64, _ driver.OpenFlags) (int, kernerr.Error) {
	st := s.(*state)
	if len(dst) == 0 {
		return 0, nil
	}
	select {
	case b := <-st.in:
		dst[0] = b
		return 1, nil
	case err := <-st.rerr:
		if err == io.EOF {
			return 0, nil
		}
		return 0, kernerr.IO.Wrap(err)
	default:
		return 0, kernerr.Timeout.WithMessage("console: no input available")
	}
}

func write(s driver.State, src []byte, _ int64, _ driver.OpenFlags) (int, kernerr.Error) {
	st := s.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()

	n, err := st.out.Write(src)
	if err != nil {
		return n, kernerr.IO.Wrap(err)
	}
	return n, nil
}

func ioctl(s driver.State, req ioctlnum.Number, arg any) (any, kernerr.Error) {
	st := s.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()

	switch req {
	case ioctlnum.IoctlConsoleSetBaudrate:
		rate, ok := arg.(uint32)
		if !ok {
			return nil, kernerr.InvalidArgument.WithMessage("console: baudrate must be uint32")
		}
		st.baudrate = rate
		return nil, nil
	case ioctlnum.IoctlConsoleGetBaudrate:
		return st.baudrate, nil
	case ioctlnum.IoctlConsoleFlushRx:
		for {
			select {
			case <-st.in:
				continue
			default:
			}
			break
		}
		return nil, nil
	default:
		return nil, kernerr.NotSupported.WithMessage("console: unknown ioctl")
	}
}
