package vfs

import (
	"os"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

func (v *VFS) Mkdir(path string, perm os.FileMode) kernerr.Error {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return kernerr.NotFound.WithMessage("mkdir: " + path)
	}
	if mount.ops.Mkdir == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Mkdir")
	}
	return mount.ops.Mkdir(mount.state, rel, perm)
}

// Mknod creates a device node at path bound to the driver instance
// described by dev. Only devfs (and filesystems built like it) implement
// this; others return kernerr.NotSupported.
func (v *VFS) Mknod(path string, dev DeviceBinding) kernerr.Error {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return kernerr.NotFound.WithMessage("mknod: " + path)
	}
	if mount.ops.Mknod == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Mknod")
	}
	return mount.ops.Mknod(mount.state, rel, dev)
}

func (v *VFS) Remove(path string) kernerr.Error {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return kernerr.NotFound.WithMessage("remove: " + path)
	}
	if mount.ops.Remove == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Remove")
	}
	return mount.ops.Remove(mount.state, rel)
}

// Rename only supports renaming within a single mount; there is no
// cross-device fallback.
func (v *VFS) Rename(oldPath, newPath string) kernerr.Error {
	oldMount, oldRel, err := v.resolve(oldPath)
	if err != nil {
		return kernerr.NotFound.WithMessage("rename: " + oldPath)
	}
	newMount, newRel, err := v.resolve(newPath)
	if err != nil {
		return kernerr.NotFound.WithMessage("rename: " + newPath)
	}
	if oldMount != newMount {
		return kernerr.InvalidArgument.WithMessage("rename: cross-mount rename not supported")
	}
	if oldMount.ops.Rename == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + oldMount.fsName + " has no Rename")
	}
	return oldMount.ops.Rename(oldMount.state, oldRel, newRel)
}

func (v *VFS) Chmod(path string, mode os.FileMode) kernerr.Error {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return kernerr.NotFound.WithMessage("chmod: " + path)
	}
	if mount.ops.Chmod == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Chmod")
	}
	return mount.ops.Chmod(mount.state, rel, mode)
}

func (v *VFS) Chown(path string, uid, gid int) kernerr.Error {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return kernerr.NotFound.WithMessage("chown: " + path)
	}
	if mount.ops.Chown == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Chown")
	}
	return mount.ops.Chown(mount.state, rel, uid, gid)
}

func (v *VFS) Stat(path string) (Stat, kernerr.Error) {
	mount, rel, err := v.resolve(path)
	if err != nil {
		return Stat{}, kernerr.NotFound.WithMessage("stat: " + path)
	}
	if mount.ops.Stat == nil {
		return Stat{}, kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Stat")
	}
	return mount.ops.Stat(mount.state, rel)
}

func (v *VFS) Statfs(path string) (FSStat, kernerr.Error) {
	mount, _, err := v.resolve(path)
	if err != nil {
		return FSStat{}, kernerr.NotFound.WithMessage("statfs: " + path)
	}
	if mount.ops.Statfs == nil {
		return FSStat{}, kernerr.NotSupported.WithMessage("filesystem " + mount.fsName + " has no Statfs")
	}
	return mount.ops.Statfs(mount.state)
}

// Sync flushes every mounted filesystem, in no particular order. A failure
// does not stop the other mounts from syncing; the first failure seen is
// returned.
func (v *VFS) Sync() kernerr.Error {
	v.mu.Lock()
	nodes := make([]*mountNode, 0, len(v.mounts))
	for _, n := range v.mounts {
		nodes = append(nodes, n)
	}
	v.mu.Unlock()

	var first kernerr.Error
	for _, n := range nodes {
		if n.ops.Sync == nil {
			continue
		}
		if err := n.ops.Sync(n.state); err != nil && first == nil {
			first = err
		}
	}
	return first
}
