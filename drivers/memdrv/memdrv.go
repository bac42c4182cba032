// Package memdrv implements a memory-backed loopback block driver. Its
// content is an io.ReadWriteSeeker over a plain []byte via
// github.com/xaionaro-go/bytesextra.
package memdrv

import (
	"io"
	"sync"

	"github.com/xaionaro-go/bytesextra"

	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// Name is the driver name this package registers under.
const Name = "memdrv"

// Config configures an instance's backing size at Init time.
type Config struct {
	Size int
}

type state struct {
	mu     sync.Mutex
	data   []byte
	stream io.ReadWriteSeeker
}

// New returns the descriptor a Framework registers.
func New() driver.Descriptor {
	return driver.Descriptor{
		Name: Name,
		Ops: driver.Ops{
			Init:  initState,
			Open:  func(driver.State, driver.OpenFlags) kernerr.Error { return nil },
			Close: func(driver.State, bool) kernerr.Error { return nil },
			Read:  read,
			Write: write,
			Ioctl: ioctl,
			Flush: func(driver.State) kernerr.Error { return nil },
			Stat:  stat,
		},
	}
}

func initState(_, _ int, _ string, config any) (driver.State, kernerr.Error) {
	size := 4096
	if cfg, ok := config.(Config); ok && cfg.Size > 0 {
		size = cfg.Size
	}
	data := make([]byte, size)
	return &state{data: data, stream: bytesextra.NewReadWriteSeeker(data)}, nil
}

func read(s driver.State, dst []byte, offset int64, _ driver.OpenFlags) (int, kernerr.Error) {
	st := s.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()

	if offset >= int64(len(st.data)) {
		return 0, nil
	}
	if _, err := st.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, kernerr.IO.Wrap(err)
	}
	n, err := st.stream.Read(dst)
	if err != nil && err != io.EOF {
		return n, kernerr.IO.Wrap(err)
	}
	return n, nil
}

func write(s driver.State, src []byte, offset int64, _ driver.OpenFlags) (int, kernerr.Error) {
	st := s.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()

	if offset+int64(len(src)) > int64(len(st.data)) {
		return 0, kernerr.NoSpace.WithMessage("memdrv: write past end of backing store")
	}
	if _, err := st.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, kernerr.IO.Wrap(err)
	}
	n, err := st.stream.Write(src)
	if err != nil {
		return n, kernerr.IO.Wrap(err)
	}
	return n, nil
}

func ioctl(_ driver.State, req ioctlnum.Number, _ any) (any, kernerr.Error) {
	switch req {
	case ioctlnum.IoctlDeviceSyncCache:
		return nil, nil
	default:
		return nil, kernerr.NotSupported.WithMessage("memdrv: unknown ioctl")
	}
}

func stat(s driver.State) (driver.Stat, kernerr.Error) {
	st := s.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()
	return driver.Stat{Size: int64(len(st.data)), Kind: driver.KindBlock, Permissions: 0644}, nil
}
