package devfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/drivers/memdrv"
	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/vfs"
	"github.com/devdnl/dnxcore/pkg/vfs/devfs"
	"github.com/devdnl/dnxcore/pkg/vfs/tmpfs"
)

func newMountedDevfs(t *testing.T) (*vfs.VFS, *driver.Framework, *devfs.Devfs) {
	fw := driver.New()
	require.NoError(t, fw.Register(memdrv.New()))

	dfs, desc := devfs.New(fw)
	v := vfs.New()
	require.NoError(t, v.RegisterFS(desc))
	require.NoError(t, v.RegisterFS(tmpfs.New()))
	require.NoError(t, v.Mount("tmpfs", "", "/"))
	require.NoError(t, v.Mkdir("/dev", 0755))
	require.NoError(t, v.Mount("devfs", "", "/dev"))
	return v, fw, dfs
}

func TestOpenUnregisteredDeviceIsNotFound(t *testing.T) {
	v, _, _ := newMountedDevfs(t)
	_, err := v.Open("/dev/nope", vfs.ORead|vfs.OWrite, 0)
	assert.ErrorIs(t, err, kernerr.NotFound)
}

func TestOpenRegisteredDeviceSucceeds(t *testing.T) {
	v, fw, dfs := newMountedDevfs(t)

	key, err := fw.Init(memdrv.Name, 0, 0, "/mem0", memdrv.Config{Size: 128})
	require.NoError(t, err)
	dfs.Bind("/mem0", key)

	f, operr := v.Open("/dev/mem0", vfs.ORead|vfs.OWrite, 0)
	require.NoError(t, operr)

	n, werr := v.Write(f, []byte("hi"))
	require.NoError(t, werr)
	assert.Equal(t, 2, n)
	require.NoError(t, v.Close(f))
}
