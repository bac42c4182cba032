// Package tmpfs implements a volatile, in-memory filesystem: a directory
// tree that holds no persistent state. Regular file content is backed by
// github.com/xaionaro-go/bytesextra's io.ReadWriteSeeker over a plain
// []byte.
package tmpfs

import (
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/xaionaro-go/bytesextra"

	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/vfs"
)

type node struct {
	name     string
	isDir    bool
	mode     os.FileMode
	modified time.Time
	data     []byte
	children map[string]*node
}

func newDir(name string, mode os.FileMode) *node {
	return &node{name: name, isDir: true, mode: mode | os.ModeDir, children: make(map[string]*node), modified: time.Now()}
}

// Tmpfs is the per-mount state: a single in-memory directory tree.
type Tmpfs struct {
	mu   sync.Mutex
	root *node
}

// New returns a descriptor a VFS registers via RegisterFS.
func New() vfs.FSDescriptor {
	return vfs.FSDescriptor{
		Name: "tmpfs",
		Ops: vfs.FSOps{
			Init:     initFS,
			Release:  func(vfs.MountState) kernerr.Error { return nil },
			Mkdir:    mkdir,
			Remove:   remove,
			Rename:   rename,
			Chmod:    chmod,
			Stat:     statPath,
			Open:     open,
			Close:    closeFile,
			Read:     read,
			Write:    write,
			Fstat:    fstat,
			Opendir:  opendir,
			Readdir:  readdir,
			Closedir: func(vfs.MountState, vfs.DirHandle) kernerr.Error { return nil },
			Sync:     func(vfs.MountState) kernerr.Error { return nil },
		},
	}
}

func initFS(_ string, _ vfs.BackingOpen) (vfs.MountState, kernerr.Error) {
	return &Tmpfs{root: newDir("/", 0755)}, nil
}

func splitPath(p string) []string {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// walk returns the node at p.
func (t *Tmpfs) walk(p string) (*node, kernerr.Error) {
	parts := splitPath(p)
	cur := t.root
	for _, part := range parts {
		child, ok := cur.children[part]
		if !ok {
			return nil, kernerr.NotFound.WithMessage("tmpfs: " + p + " not found")
		}
		cur = child
	}
	return cur, nil
}

func (t *Tmpfs) parentAndName(p string) (*node, string, kernerr.Error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, "", kernerr.InvalidArgument.WithMessage("tmpfs: cannot operate on root")
	}
	parent, err := t.walk(path.Dir("/"+strings.Join(parts, "/")))
	if err != nil {
		return nil, "", err
	}
	return parent, parts[len(parts)-1], nil
}

func mkdir(s vfs.MountState, p string, perm os.FileMode) kernerr.Error {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, name, err := t.parentAndName(p)
	if err != nil {
		return err
	}
	if !parent.isDir {
		return kernerr.NotDirectory.WithMessage("tmpfs: parent of " + p + " is not a directory")
	}
	if _, exists := parent.children[name]; exists {
		return kernerr.AlreadyExists.WithMessage("tmpfs: " + p + " already exists")
	}
	parent.children[name] = newDir(name, perm)
	return nil
}

func remove(s vfs.MountState, p string) kernerr.Error {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, name, err := t.parentAndName(p)
	if err != nil {
		return err
	}
	target, ok := parent.children[name]
	if !ok {
		return kernerr.NotFound.WithMessage("tmpfs: " + p + " not found")
	}
	if target.isDir && len(target.children) > 0 {
		return kernerr.InvalidArgument.WithMessage("tmpfs: " + p + " is not empty")
	}
	delete(parent.children, name)
	return nil
}

func rename(s vfs.MountState, oldPath, newPath string) kernerr.Error {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	oldParent, oldName, err := t.parentAndName(oldPath)
	if err != nil {
		return err
	}
	target, ok := oldParent.children[oldName]
	if !ok {
		return kernerr.NotFound.WithMessage("tmpfs: " + oldPath + " not found")
	}
	newParent, newName, err := t.parentAndName(newPath)
	if err != nil {
		return err
	}
	target.name = newName
	newParent.children[newName] = target
	delete(oldParent.children, oldName)
	return nil
}

func chmod(s vfs.MountState, p string, mode os.FileMode) kernerr.Error {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.walk(p)
	if err != nil {
		return err
	}
	n.mode = mode
	return nil
}

func toStat(n *node) vfs.Stat {
	return vfs.Stat{
		Size:       int64(len(n.data)),
		IsDir:      n.isDir,
		Mode:       n.mode,
		ModifiedAt: n.modified,
	}
}

func statPath(s vfs.MountState, p string) (vfs.Stat, kernerr.Error) {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.walk(p)
	if err != nil {
		return vfs.Stat{}, err
	}
	return toStat(n), nil
}

type fileHandle struct {
	n      *node
	stream io.ReadWriteSeeker
}

func open(s vfs.MountState, p string, flags vfs.OpenFlags, perm os.FileMode) (vfs.FileHandle, kernerr.Error) {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.walk(p)
	if err != nil {
		if flags&vfs.OCreate == 0 {
			return nil, kernerr.NotFound.WithMessage("tmpfs: " + p + " not found")
		}
		parent, name, perr := t.parentAndName(p)
		if perr != nil {
			return nil, perr
		}
		n = &node{name: name, mode: perm, modified: time.Now()}
		parent.children[name] = n
	} else if flags&vfs.OExclusive != 0 && flags&vfs.OCreate != 0 {
		return nil, kernerr.AlreadyExists.WithMessage("tmpfs: " + p + " already exists")
	}

	if n.isDir {
		return nil, kernerr.IsDirectory.WithMessage("tmpfs: " + p + " is a directory")
	}
	return &fileHandle{n: n, stream: bytesextra.NewReadWriteSeeker(n.data)}, nil
}

func closeFile(vfs.MountState, vfs.FileHandle) kernerr.Error { return nil }

func read(s vfs.MountState, h vfs.FileHandle, dst []byte, offset int64) (int, kernerr.Error) {
	fh := h.(*fileHandle)
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	if offset >= int64(len(fh.n.data)) {
		return 0, nil
	}
	if _, serr := fh.stream.Seek(offset, io.SeekStart); serr != nil {
		return 0, kernerr.IO.Wrap(serr)
	}
	n, rerr := fh.stream.Read(dst)
	if rerr != nil && rerr != io.EOF {
		return n, kernerr.IO.Wrap(rerr)
	}
	return n, nil
}

// write grows the backing slice when necessary, then rebinds fh.stream to
// the grown slice since bytesextra's seeker is fixed to the slice it was
// constructed over.
func write(s vfs.MountState, h vfs.FileHandle, src []byte, offset int64) (int, kernerr.Error) {
	fh := h.(*fileHandle)
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	need := offset + int64(len(src))
	if int64(len(fh.n.data)) < need {
		grown := make([]byte, need)
		copy(grown, fh.n.data)
		fh.n.data = grown
		fh.stream = bytesextra.NewReadWriteSeeker(fh.n.data)
	}

	if _, serr := fh.stream.Seek(offset, io.SeekStart); serr != nil {
		return 0, kernerr.IO.Wrap(serr)
	}
	n, werr := fh.stream.Write(src)
	if werr != nil {
		return n, kernerr.IO.Wrap(werr)
	}
	fh.n.modified = time.Now()
	return n, nil
}

func fstat(_ vfs.MountState, h vfs.FileHandle) (vfs.Stat, kernerr.Error) {
	fh := h.(*fileHandle)
	return toStat(fh.n), nil
}

type dirHandle struct {
	names []string
	idx   int
	dir   *node
}

func opendir(s vfs.MountState, p string) (vfs.DirHandle, kernerr.Error) {
	t := s.(*Tmpfs)
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.walk(p)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, kernerr.NotDirectory.WithMessage("tmpfs: " + p + " is not a directory")
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return &dirHandle{names: names, dir: n}, nil
}

func readdir(s vfs.MountState, h vfs.DirHandle) (vfs.DirEntry, bool, kernerr.Error) {
	dh := h.(*dirHandle)
	if dh.idx >= len(dh.names) {
		return vfs.DirEntry{}, false, nil
	}
	name := dh.names[dh.idx]
	dh.idx++
	return vfs.DirEntry{Name: name, Stat: toStat(dh.dir.children[name])}, true, nil
}
