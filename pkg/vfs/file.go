package vfs

import (
	"io"
	"os"

	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// File is a handle created by Open. Operations on a single handle are
// serialized by the handle itself: callers must not issue concurrent
// operations on the same *File.
type File struct {
	mount  *mountNode
	handle FileHandle
	pos    int64
	flags  OpenFlags
	path   string
	closed bool
}

// Open resolves path, calls the owning filesystem's Open, and returns a
// handle with seek position 0 (or end, for append mode). Errors from path
// resolution are folded to kernerr.NotFound, hiding filesystem-specific
// codes from the resolution step.
func (v *VFS) Open(path string, flags OpenFlags, perm os.FileMode) (*File, kernerr.Error) {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return nil, kernerr.NotFound.WithMessage("open: " + path)
	}
	if mount.ops.Open == nil {
		return nil, kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Open")
	}

	handle, err := mount.ops.Open(mount.state, rel, flags, perm)
	if err != nil {
		return nil, err
	}

	f := &File{mount: mount, handle: handle, path: path, flags: flags}
	if flags&OAppend != 0 && mount.ops.Fstat != nil {
		if stat, serr := mount.ops.Fstat(mount.state, handle); serr == nil {
			f.pos = stat.Size
		}
	}

	v.mu.Lock()
	mount.openHandles++
	v.mu.Unlock()
	return f, nil
}

// Close releases a file's filesystem resources exactly once. Closing an
// already-closed handle is a no-op.
func (v *VFS) Close(f *File) kernerr.Error {
	if f.closed {
		return nil
	}
	f.closed = true

	v.mu.Lock()
	if f.mount.openHandles > 0 {
		f.mount.openHandles--
	}
	v.mu.Unlock()

	if f.mount.ops.Close == nil {
		return nil
	}
	return f.mount.ops.Close(f.mount.state, f.handle)
}

// Read reads up to len(buf) bytes, advancing the seek position by the
// actual count. n == 0 with a nil error is EOF. Short reads are legal; the
// caller re-issues.
func (v *VFS) Read(f *File, buf []byte) (int, kernerr.Error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if f.mount.ops.Read == nil {
		return 0, kernerr.NotSupported.WithMessage("filesystem does not support Read")
	}

	n, err := f.mount.ops.Read(f.mount.state, f.handle, buf, f.pos)
	if err != nil {
		return n, err
	}
	f.pos += int64(n)
	return n, nil
}

// Write writes len(src) bytes, advancing the seek position by the actual
// count. n == 0 with a nil error means no space. Short writes are legal;
// the caller re-issues.
func (v *VFS) Write(f *File, src []byte) (int, kernerr.Error) {
	if len(src) == 0 {
		return 0, nil
	}
	if f.mount.ops.Write == nil {
		return 0, kernerr.NotSupported.WithMessage("filesystem does not support Write")
	}

	n, err := f.mount.ops.Write(f.mount.state, f.handle, src, f.pos)
	if err != nil {
		return n, err
	}
	f.pos += int64(n)
	return n, nil
}

// Seek updates the handle's seek position. There is no bounds checking at
// this layer; filesystems may accept beyond-end seeks.
func (v *VFS) Seek(f *File, offset int64, whence int) (int64, kernerr.Error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		stat, err := v.Fstat(f)
		if err != nil {
			return 0, err
		}
		newPos = stat.Size + offset
	default:
		return 0, kernerr.InvalidArgument.WithMessage("seek: invalid whence")
	}
	if newPos < 0 {
		return 0, kernerr.InvalidArgument.WithMessage("seek: negative position")
	}
	f.pos = newPos
	return newPos, nil
}

// Ioctl delegates to the filesystem and, for devfs entries, ultimately to
// the driver.
func (v *VFS) Ioctl(f *File, req ioctlnum.Number, arg any) (any, kernerr.Error) {
	if f.mount.ops.Ioctl == nil {
		return nil, kernerr.NotSupported.WithMessage("filesystem does not support Ioctl")
	}
	return f.mount.ops.Ioctl(f.mount.state, f.handle, req, arg)
}

// Flush asks the filesystem to flush any buffered state for this handle.
func (v *VFS) Flush(f *File) kernerr.Error {
	if f.mount.ops.Flush == nil {
		return nil
	}
	return f.mount.ops.Flush(f.mount.state, f.handle)
}

// Fstat returns status for an open file.
func (v *VFS) Fstat(f *File) (Stat, kernerr.Error) {
	if f.mount.ops.Fstat == nil {
		return Stat{}, kernerr.NotSupported.WithMessage("filesystem does not support Fstat")
	}
	return f.mount.ops.Fstat(f.mount.state, f.handle)
}

// Path returns the absolute path this handle was opened with.
func (f *File) Path() string { return f.path }
