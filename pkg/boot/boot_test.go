package boot_test

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/apps/echo"
	"github.com/devdnl/dnxcore/drivers/console"
	"github.com/devdnl/dnxcore/pkg/boot"
	"github.com/devdnl/dnxcore/pkg/stdio"
)

// syncWriter is a thread-safe io.Writer the test console driver writes
// through, since the pump loop and the test goroutine both touch it.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.buf.Bytes()...)
}

// TestRunSpawnAndTerminate registers echo, injects byte 0x41 on the
// console's input, and requires the console output to contain 0x41
// followed by the Status-OK sentinel once Run returns.
func TestRunSpawnAndTerminate(t *testing.T) {
	const heapSize = 1 << 16
	const logCapacity = 4 << 10

	k := boot.NewKernel(heapSize, logCapacity)

	in, injectedBy := io.Pipe()
	out := &syncWriter{}
	require.NoError(t, k.InitConsole("/dev/console", console.New(in, out)))

	k.Apps.Register(echo.Entry())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = injectedBy.Write([]byte{0x41})
	}()

	done := make(chan struct {
		status int
		err    error
	}, 1)
	go func() {
		status, err := k.Run("echo", nil)
		done <- struct {
			status int
			err    error
		}{status, err}
	}()

	select {
	case result := <-done:
		require.NoError(t, result.err)
		assert.Equal(t, 0, result.status)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return within the expected time")
	}

	assert.Equal(t, []byte{0x41, stdio.StatusOK}, out.Bytes())
}

func TestMountAllAppliesEmbeddedTable(t *testing.T) {
	k := boot.NewKernel(1<<16, 4<<10)

	specs, err := boot.DefaultMountTable()
	require.NoError(t, err)
	require.NotEmpty(t, specs)
	assert.Equal(t, "/", specs[0].Target)

	require.NoError(t, k.MountAll(specs))

	stat, serr := k.VFS.Stat("/tmp")
	require.NoError(t, serr)
	assert.True(t, stat.IsDir)
}
