package vfs

import "github.com/devdnl/dnxcore/pkg/kernerr"

// Dir is a handle created by Opendir. Readdir iterates it lazily, one
// entry at a time, until exhausted. Concurrent modifications during
// iteration are undefined unless the filesystem guarantees otherwise.
type Dir struct {
	mount  *mountNode
	handle DirHandle
}

func (v *VFS) Opendir(path string) (*Dir, kernerr.Error) {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return nil, kernerr.NotFound.WithMessage("opendir: " + path)
	}
	if mount.ops.Opendir == nil {
		return nil, kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Opendir")
	}

	handle, err := mount.ops.Opendir(mount.state, rel)
	if err != nil {
		return nil, err
	}
	return &Dir{mount: mount, handle: handle}, nil
}

// Readdir returns the next entry. ok is false once the directory is
// exhausted.
func (v *VFS) Readdir(d *Dir) (entry DirEntry, ok bool, err kernerr.Error) {
	if d.mount.ops.Readdir == nil {
		return DirEntry{}, false, kernerr.NotSupported.WithMessage("filesystem does not support Readdir")
	}
	return d.mount.ops.Readdir(d.mount.state, d.handle)
}

func (v *VFS) Closedir(d *Dir) kernerr.Error {
	if d.mount.ops.Closedir == nil {
		return nil
	}
	return d.mount.ops.Closedir(d.mount.state, d.handle)
}
