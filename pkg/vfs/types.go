// Package vfs implements the virtual file system layer: a tree of mount
// points, a pluggable filesystem vtable, longest-prefix path resolution,
// and the POSIX-like file operations that dispatch through it.
package vfs

import (
	"os"
	"time"

	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// OpenFlags mirror the POSIX open(2) flags relevant at this layer.
type OpenFlags uint8

const (
	ORead OpenFlags = 1 << iota
	OWrite
	OAppend
	OCreate
	OExclusive
	ODirectory
)

func (f OpenFlags) RequiresWrite() bool { return f&(OWrite|OAppend|OCreate) != 0 }

// Stat is a platform-independent file status.
type Stat struct {
	Size       int64
	IsDir      bool
	IsSymlink  bool
	Mode       os.FileMode
	Uid, Gid   uint32
	ModifiedAt time.Time
	AccessedAt time.Time
	ChangedAt  time.Time
}

// FSStat is a platform-independent form of statfs(2).
type FSStat struct {
	BlockSize       int64
	TotalBlocks     uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	Files           uint64
	FilesFree       uint64
	Label           string
}

// DirEntry is one entry returned by a lazy readdir.
type DirEntry struct {
	Name string
	Stat Stat
}

// DeviceBinding is the argument mknod passes through to a filesystem that
// supports creating device nodes (only devfs does); it names the driver
// instance the new path should forward to.
type DeviceBinding struct {
	DriverName string
	Major      int
	Minor      int
}

// MountState is the opaque, per-mount state a filesystem's Init produces.
type MountState interface{}

// FileHandle is the opaque, per-open-file state a filesystem's Open
// produces.
type FileHandle interface{}

// DirHandle is the opaque, per-open-directory state a filesystem's Opendir
// produces.
type DirHandle interface{}

// BackingOpen is the callback the VFS supplies to a filesystem's Init so it
// can open its source device by VFS path without the filesystem package
// importing vfs itself.
type BackingOpen func(path string, flags OpenFlags) (*File, kernerr.Error)

// FSOps is the filesystem vtable. Every method is optional except Init.
// An unset Release, Close, Flush, Sync or Closedir is a no-op; any other
// unset method makes the VFS call return kernerr.NotSupported.
type FSOps struct {
	Init    func(source string, backingOpen BackingOpen) (MountState, kernerr.Error)
	Release func(s MountState) kernerr.Error

	Mkdir  func(s MountState, path string, perm os.FileMode) kernerr.Error
	Mknod  func(s MountState, path string, dev DeviceBinding) kernerr.Error
	Remove func(s MountState, path string) kernerr.Error
	Rename func(s MountState, oldPath, newPath string) kernerr.Error
	Chmod  func(s MountState, path string, mode os.FileMode) kernerr.Error
	Chown  func(s MountState, path string, uid, gid int) kernerr.Error
	Stat   func(s MountState, path string) (Stat, kernerr.Error)
	Statfs func(s MountState) (FSStat, kernerr.Error)
	Sync   func(s MountState) kernerr.Error

	Open  func(s MountState, path string, flags OpenFlags, perm os.FileMode) (FileHandle, kernerr.Error)
	Close func(s MountState, h FileHandle) kernerr.Error
	Read  func(s MountState, h FileHandle, dst []byte, offset int64) (int, kernerr.Error)
	Write func(s MountState, h FileHandle, src []byte, offset int64) (int, kernerr.Error)
	Ioctl func(s MountState, h FileHandle, req ioctlnum.Number, arg any) (any, kernerr.Error)
	Flush func(s MountState, h FileHandle) kernerr.Error
	Fstat func(s MountState, h FileHandle) (Stat, kernerr.Error)

	Opendir  func(s MountState, path string) (DirHandle, kernerr.Error)
	Readdir  func(s MountState, d DirHandle) (DirEntry, bool, kernerr.Error)
	Closedir func(s MountState, d DirHandle) kernerr.Error
}

// FSDescriptor is the immutable record a filesystem implementation
// registers with a VFS.
type FSDescriptor struct {
	Name string
	Ops  FSOps
}
