package tmpfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/vfs"
	"github.com/devdnl/dnxcore/pkg/vfs/tmpfs"
)

func newMountedTmpfs(t *testing.T) *vfs.VFS {
	v := vfs.New()
	require.NoError(t, v.RegisterFS(tmpfs.New()))
	require.NoError(t, v.Mount("tmpfs", "", "/"))
	return v
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	v := newMountedTmpfs(t)

	f, err := v.Open("/greeting.txt", vfs.OWrite|vfs.OCreate, 0644)
	require.NoError(t, err)

	n, werr := v.Write(f, []byte("hello"))
	require.NoError(t, werr)
	assert.Equal(t, 5, n)
	require.NoError(t, v.Close(f))

	f, err = v.Open("/greeting.txt", vfs.ORead, 0)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, rerr := v.Read(f, buf)
	require.NoError(t, rerr)
	assert.Equal(t, "hello", string(buf[:n]))
	require.NoError(t, v.Close(f))
}

func TestReadZeroBytesIsNoOp(t *testing.T) {
	v := newMountedTmpfs(t)
	f, err := v.Open("/f", vfs.OWrite|vfs.OCreate, 0644)
	require.NoError(t, err)
	n, rerr := v.Read(f, nil)
	require.NoError(t, rerr)
	assert.Equal(t, 0, n)
}

func TestMkdirThenStatReportsDirectory(t *testing.T) {
	v := newMountedTmpfs(t)
	require.NoError(t, v.Mkdir("/sub", 0755))

	stat, err := v.Stat("/sub")
	require.NoError(t, err)
	assert.True(t, stat.IsDir)
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	v := newMountedTmpfs(t)
	require.NoError(t, v.Mkdir("/sub", 0755))
	f, err := v.Open("/sub/file", vfs.OWrite|vfs.OCreate, 0644)
	require.NoError(t, err)
	require.NoError(t, v.Close(f))

	err = v.Remove("/sub")
	assert.ErrorIs(t, err, kernerr.InvalidArgument)
}

func TestOpendirListsChildren(t *testing.T) {
	v := newMountedTmpfs(t)
	require.NoError(t, v.Mkdir("/dir", 0755))
	f, err := v.Open("/dir/a", vfs.OWrite|vfs.OCreate, 0644)
	require.NoError(t, err)
	require.NoError(t, v.Close(f))

	d, err := v.Opendir("/dir")
	require.NoError(t, err)

	names := map[string]bool{}
	for {
		entry, ok, derr := v.Readdir(d)
		require.NoError(t, derr)
		if !ok {
			break
		}
		names[entry.Name] = true
	}
	assert.True(t, names["a"])
}
