package vfs

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// fixedFS is a minimal in-test filesystem exposing one 8-byte file at any
// path, enough to drive the handle-level seek and zero-length semantics
// without pulling a concrete filesystem package into this one.
type fixedFS struct {
	content []byte
}

func (f *fixedFS) descriptor(name string) FSDescriptor {
	return FSDescriptor{
		Name: name,
		Ops: FSOps{
			Init:  func(string, BackingOpen) (MountState, kernerr.Error) { return f, nil },
			Open:  func(MountState, string, OpenFlags, os.FileMode) (FileHandle, kernerr.Error) { return f, nil },
			Close: func(MountState, FileHandle) kernerr.Error { return nil },
			Read: func(_ MountState, _ FileHandle, dst []byte, offset int64) (int, kernerr.Error) {
				if offset >= int64(len(f.content)) {
					return 0, nil
				}
				return copy(dst, f.content[offset:]), nil
			},
			Fstat: func(MountState, FileHandle) (Stat, kernerr.Error) {
				return Stat{Size: int64(len(f.content))}, nil
			},
		},
	}
}

func newFixedFile(t *testing.T) (*VFS, *File) {
	fs := &fixedFS{content: []byte("contents")}
	v := New()
	require.NoError(t, v.RegisterFS(fs.descriptor("fixedfs")))
	require.NoError(t, v.Mount("fixedfs", "", "/"))

	file, err := v.Open("/f", ORead, 0)
	require.NoError(t, err)
	return v, file
}

func TestSeekPastEndThenReadReturnsEOF(t *testing.T) {
	v, f := newFixedFile(t)
	defer v.Close(f)

	pos, err := v.Seek(f, 100, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 100, pos)

	n, rerr := v.Read(f, make([]byte, 4))
	require.NoError(t, rerr)
	assert.Equal(t, 0, n)
}

func TestSeekWhenceVariants(t *testing.T) {
	v, f := newFixedFile(t)
	defer v.Close(f)

	pos, err := v.Seek(f, 2, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pos)

	pos, err = v.Seek(f, 3, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	pos, err = v.Seek(f, -1, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 7, pos)

	_, err = v.Seek(f, -100, io.SeekCurrent)
	assert.ErrorIs(t, err, kernerr.InvalidArgument)
}

func TestZeroLengthReadAndWriteAreNoOps(t *testing.T) {
	v, f := newFixedFile(t)
	defer v.Close(f)

	n, err := v.Read(f, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = v.Write(f, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCloseIsIdempotent(t *testing.T) {
	v, f := newFixedFile(t)
	require.NoError(t, v.Close(f))
	require.NoError(t, v.Close(f))
}

func TestUnmountBusyWhileHandleOpen(t *testing.T) {
	fs := &fixedFS{content: []byte("x")}
	v := New()
	require.NoError(t, v.RegisterFS(fs.descriptor("rootfs")))
	require.NoError(t, v.RegisterFS(fs.descriptor("subfs")))
	require.NoError(t, v.Mount("rootfs", "", "/"))
	require.NoError(t, v.Mount("subfs", "", "/sub"))

	f, err := v.Open("/sub/f", ORead, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Unmount("/sub"), kernerr.Busy)
	require.NoError(t, v.Close(f))
	require.NoError(t, v.Unmount("/sub"))
}
