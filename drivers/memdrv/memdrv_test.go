package memdrv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/drivers/memdrv"
	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

func newInstance(t *testing.T, size int) (*driver.Framework, driver.Key) {
	fw := driver.New()
	require.NoError(t, fw.Register(memdrv.New()))
	key, err := fw.Init(memdrv.Name, 0, 0, "/dev/mem0", memdrv.Config{Size: size})
	require.NoError(t, err)
	return fw, key
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	fw, key := newInstance(t, 64)

	n, err := fw.Write(key, []byte("payload"), 8, driver.OpenWrite)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	buf := make([]byte, 7)
	n, err = fw.Read(key, buf, 8, driver.OpenRead)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", string(buf))
}

func TestWritePastEndReturnsNoSpace(t *testing.T) {
	fw, key := newInstance(t, 16)
	_, err := fw.Write(key, []byte("too much data here"), 0, driver.OpenWrite)
	assert.ErrorIs(t, err, kernerr.NoSpace)
}

func TestReadPastEndIsEOF(t *testing.T) {
	fw, key := newInstance(t, 16)
	n, err := fw.Read(key, make([]byte, 4), 16, driver.OpenRead)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStatReportsBlockDeviceSize(t *testing.T) {
	fw, key := newInstance(t, 128)
	stat, err := fw.Stat(key)
	require.NoError(t, err)
	assert.EqualValues(t, 128, stat.Size)
	assert.Equal(t, driver.KindBlock, stat.Kind)
}

func TestUnknownIoctlIsNotSupported(t *testing.T) {
	fw, key := newInstance(t, 16)

	_, err := fw.Ioctl(key, ioctlnum.IoctlDeviceSyncCache, nil)
	require.NoError(t, err)

	_, err = fw.Ioctl(key, ioctlnum.IoctlConsoleSetBaudrate, nil)
	assert.ErrorIs(t, err, kernerr.NotSupported)
}
