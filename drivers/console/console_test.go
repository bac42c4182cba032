package console_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/drivers/console"
	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

func newConsole(t *testing.T, r io.Reader, w io.Writer) (*driver.Framework, driver.Key) {
	fw := driver.New()
	require.NoError(t, fw.Register(console.New(r, w)))
	key, err := fw.Init(console.Name, 0, 0, "/dev/console", nil)
	require.NoError(t, err)
	return fw, key
}

func TestReadProbeIsNonBlocking(t *testing.T) {
	blocked, _ := io.Pipe()
	fw, key := newConsole(t, blocked, io.Discard)

	start := time.Now()
	_, err := fw.Read(key, make([]byte, 1), 0, driver.OpenRead)
	assert.ErrorIs(t, err, kernerr.Timeout)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestReadReturnsInjectedByte(t *testing.T) {
	r, inject := io.Pipe()
	fw, key := newConsole(t, r, io.Discard)

	go func() { _, _ = inject.Write([]byte{0x41}) }()

	buf := make([]byte, 1)
	deadline := time.Now().Add(time.Second)
	for {
		n, err := fw.Read(key, buf, 0, driver.OpenRead)
		if err == nil && n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("injected byte never arrived")
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, byte(0x41), buf[0])
}

func TestWritePassesThrough(t *testing.T) {
	var out bytes.Buffer
	fw, key := newConsole(t, bytes.NewReader(nil), &out)

	n, err := fw.Write(key, []byte("boot ok\n"), 0, driver.OpenWrite)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "boot ok\n", out.String())
}

func TestBaudrateIoctlRoundTrips(t *testing.T) {
	fw, key := newConsole(t, bytes.NewReader(nil), io.Discard)

	_, err := fw.Ioctl(key, ioctlnum.IoctlConsoleSetBaudrate, uint32(9600))
	require.NoError(t, err)

	got, err := fw.Ioctl(key, ioctlnum.IoctlConsoleGetBaudrate, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(9600), got)

	_, err = fw.Ioctl(key, ioctlnum.IoctlConsoleSetBaudrate, "fast")
	assert.ErrorIs(t, err, kernerr.InvalidArgument)
}
