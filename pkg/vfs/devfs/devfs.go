// Package devfs implements the built-in device filesystem: its files are
// driver endpoints. The path-to-driver mapping is established when a
// driver instance is bound to a device path, and devfs's file handles are
// thin wrappers that forward read/write/ioctl/close to the underlying
// driver instance.
package devfs

import (
	"os"
	"strings"
	"sync"

	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/vfs"
)

// Devfs bridges the VFS layer to a driver.Framework. It holds only weak
// references to driver instances, the (name, major, minor) key, and
// acquires a short lock when dispatching a call.
type Devfs struct {
	fw *driver.Framework

	mu    sync.Mutex
	paths map[string]driver.Key
}

// New creates a devfs bridge over fw and returns the descriptor a VFS
// registers via RegisterFS.
func New(fw *driver.Framework) (*Devfs, vfs.FSDescriptor) {
	d := &Devfs{fw: fw, paths: make(map[string]driver.Key)}
	return d, vfs.FSDescriptor{
		Name: "devfs",
		Ops: vfs.FSOps{
			Init:     d.init,
			Release:  d.release,
			Open:     d.open,
			Close:    d.close,
			Read:     d.read,
			Write:    d.write,
			Ioctl:    d.ioctl,
			Flush:    d.flush,
			Fstat:    d.fstat,
			Stat:     d.stat,
			Mknod:    d.mknod,
			Opendir:  d.opendir,
			Readdir:  d.readdir,
			Closedir: d.closedir,
		},
	}
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// Bind records that devicePath forwards to key. Called by bootstrap
// immediately after a successful driver.Framework.Init with a non-empty
// device path.
func (d *Devfs) Bind(devicePath string, key driver.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths[normalize(devicePath)] = key
}

// Unbind removes a path-to-driver association, called when the backing
// instance is released.
func (d *Devfs) Unbind(devicePath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.paths, normalize(devicePath))
}

func (d *Devfs) lookup(relPath string) (driver.Key, kernerr.Error) {
	d.mu.Lock()
	key, ok := d.paths[normalize(relPath)]
	d.mu.Unlock()
	if !ok {
		return driver.Key{}, kernerr.NotFound.WithMessage("no device bound at " + relPath)
	}
	return key, nil
}

func (d *Devfs) init(_ string, _ vfs.BackingOpen) (vfs.MountState, kernerr.Error) {
	return d, nil
}

func (d *Devfs) release(_ vfs.MountState) kernerr.Error {
	return nil
}

type fileHandle struct {
	key   driver.Key
	flags vfs.OpenFlags
}

func toDriverFlags(flags vfs.OpenFlags) driver.OpenFlags {
	var out driver.OpenFlags
	if flags&vfs.ORead != 0 {
		out |= driver.OpenRead
	}
	if flags&vfs.OWrite != 0 {
		out |= driver.OpenWrite
	}
	if flags&vfs.OAppend != 0 {
		out |= driver.OpenAppend
	}
	if flags&vfs.OExclusive != 0 {
		out |= driver.OpenExclusive
	}
	return out
}

func (d *Devfs) open(_ vfs.MountState, path string, flags vfs.OpenFlags, _ os.FileMode) (vfs.FileHandle, kernerr.Error) {
	key, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	if err := d.fw.Open(key, toDriverFlags(flags)); err != nil {
		return nil, err
	}
	return &fileHandle{key: key, flags: flags}, nil
}

func (d *Devfs) close(_ vfs.MountState, h vfs.FileHandle) kernerr.Error {
	fh := h.(*fileHandle)
	return d.fw.Close(fh.key, false)
}

func (d *Devfs) read(_ vfs.MountState, h vfs.FileHandle, dst []byte, offset int64) (int, kernerr.Error) {
	fh := h.(*fileHandle)
	return d.fw.Read(fh.key, dst, offset, toDriverFlags(fh.flags))
}

func (d *Devfs) write(_ vfs.MountState, h vfs.FileHandle, src []byte, offset int64) (int, kernerr.Error) {
	fh := h.(*fileHandle)
	return d.fw.Write(fh.key, src, offset, toDriverFlags(fh.flags))
}

func (d *Devfs) ioctl(_ vfs.MountState, h vfs.FileHandle, req ioctlnum.Number, arg any) (any, kernerr.Error) {
	fh := h.(*fileHandle)
	return d.fw.Ioctl(fh.key, req, arg)
}

func (d *Devfs) flush(_ vfs.MountState, h vfs.FileHandle) kernerr.Error {
	fh := h.(*fileHandle)
	return d.fw.Flush(fh.key)
}

func driverStatToVFS(s driver.Stat) vfs.Stat {
	mode := os.FileMode(0644)
	if s.Kind == driver.KindBlock {
		mode |= os.ModeDevice
	} else {
		mode |= os.ModeCharDevice
	}
	return vfs.Stat{Size: s.Size, Mode: mode}
}

func (d *Devfs) fstat(_ vfs.MountState, h vfs.FileHandle) (vfs.Stat, kernerr.Error) {
	fh := h.(*fileHandle)
	s, err := d.fw.Stat(fh.key)
	if err != nil {
		return vfs.Stat{}, err
	}
	return driverStatToVFS(s), nil
}

func (d *Devfs) stat(_ vfs.MountState, path string) (vfs.Stat, kernerr.Error) {
	key, err := d.lookup(path)
	if err != nil {
		return vfs.Stat{}, err
	}
	s, err := d.fw.Stat(key)
	if err != nil {
		return vfs.Stat{}, err
	}
	return driverStatToVFS(s), nil
}

// mknod registers a new device path against an already-initialized driver
// instance, the VFS-level equivalent of passing device_path to
// driver_init.
func (d *Devfs) mknod(_ vfs.MountState, path string, dev vfs.DeviceBinding) kernerr.Error {
	key := driver.Key{Name: dev.DriverName, Major: dev.Major, Minor: dev.Minor}
	d.mu.Lock()
	d.paths[normalize(path)] = key
	d.mu.Unlock()
	return nil
}

type dirHandle struct {
	names []string
	pos   int
}

func (d *Devfs) opendir(_ vfs.MountState, path string) (vfs.DirHandle, kernerr.Error) {
	if path != "/" {
		return nil, kernerr.NotFound.WithMessage("devfs has no subdirectories")
	}

	d.mu.Lock()
	names := make([]string, 0, len(d.paths))
	for p := range d.paths {
		names = append(names, strings.TrimPrefix(p, "/"))
	}
	d.mu.Unlock()

	return &dirHandle{names: names}, nil
}

func (d *Devfs) readdir(_ vfs.MountState, h vfs.DirHandle) (vfs.DirEntry, bool, kernerr.Error) {
	dh := h.(*dirHandle)
	if dh.pos >= len(dh.names) {
		return vfs.DirEntry{}, false, nil
	}
	name := dh.names[dh.pos]
	dh.pos++

	key, err := d.lookup("/" + name)
	if err != nil {
		return vfs.DirEntry{}, false, err
	}
	s, err := d.fw.Stat(key)
	if err != nil {
		return vfs.DirEntry{Name: name}, true, nil
	}
	return vfs.DirEntry{Name: name, Stat: driverStatToVFS(s)}, true, nil
}

func (d *Devfs) closedir(_ vfs.MountState, _ vfs.DirHandle) kernerr.Error {
	return nil
}
