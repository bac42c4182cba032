// Package appfs implements the application-registry filesystem: a
// read-only directory listing of the registered programs. opendir("/")
// yields one entry per registered program, and open/read/write all fail
// with kernerr.NotSupported.
package appfs

import (
	"os"

	"github.com/devdnl/dnxcore/pkg/appreg"
	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/vfs"
)

// New returns a descriptor a VFS registers via RegisterFS, listing the
// programs known to reg at the time each directory is opened.
func New(reg *appreg.Registry) vfs.FSDescriptor {
	return vfs.FSDescriptor{
		Name: "appfs",
		Ops: vfs.FSOps{
			Init:    func(string, vfs.BackingOpen) (vfs.MountState, kernerr.Error) { return reg, nil },
			Release: func(vfs.MountState) kernerr.Error { return nil },
			Stat: func(s vfs.MountState, path string) (vfs.Stat, kernerr.Error) {
				if path != "/" {
					return vfs.Stat{}, kernerr.NotFound.WithMessage("appfs: " + path)
				}
				return vfs.Stat{IsDir: true, Mode: os.ModeDir | 0555}, nil
			},
			Open: func(vfs.MountState, string, vfs.OpenFlags, os.FileMode) (vfs.FileHandle, kernerr.Error) {
				return nil, kernerr.NotSupported.WithMessage("appfs entries are not readable files")
			},
			Opendir:  opendir,
			Readdir:  readdir,
			Closedir: func(vfs.MountState, vfs.DirHandle) kernerr.Error { return nil },
		},
	}
}

type dirHandle struct {
	entries []appreg.Entry
	idx     int
}

func opendir(s vfs.MountState, path string) (vfs.DirHandle, kernerr.Error) {
	if path != "/" {
		return nil, kernerr.NotFound.WithMessage("appfs: " + path)
	}
	reg := s.(*appreg.Registry)
	return &dirHandle{entries: reg.List()}, nil
}

func readdir(_ vfs.MountState, h vfs.DirHandle) (vfs.DirEntry, bool, kernerr.Error) {
	dh := h.(*dirHandle)
	if dh.idx >= len(dh.entries) {
		return vfs.DirEntry{}, false, nil
	}
	e := dh.entries[dh.idx]
	dh.idx++
	return vfs.DirEntry{Name: e.Name, Stat: vfs.Stat{Mode: 0555}}, true, nil
}
