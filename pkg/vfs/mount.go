package vfs

import (
	"strings"
	"sync"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

type mountNode struct {
	path        string
	fsName      string
	source      string
	state       MountState
	ops         FSOps
	openHandles int
	childMounts int
}

// VFS is the mount-point tree plus operation dispatcher. The zero value
// is not usable; construct one with New.
type VFS struct {
	mu          sync.Mutex
	registry    map[string]FSOps
	mounts      map[string]*mountNode
	rootMounted bool
}

func New() *VFS {
	return &VFS{
		registry: make(map[string]FSOps),
		mounts:   make(map[string]*mountNode),
	}
}

// RegisterFS adds a filesystem implementation that Mount can subsequently
// attach anywhere in the tree.
func (v *VFS) RegisterFS(d FSDescriptor) kernerr.Error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.registry[d.Name]; exists {
		return kernerr.AlreadyExists.WithMessage("filesystem " + d.Name + " already registered")
	}
	v.registry[d.Name] = d.Ops
	return nil
}

func normalizeMountPath(path string) string {
	if path == "" {
		return "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Mount attaches fsName at mountPath, sourced from source (another VFS path,
// or empty for a virtual filesystem). The very first mount must be at "/".
// Any later mountPath must already resolve to an existing directory in the
// current mount's namespace; this is only enforced against filesystems
// that implement Stat, since a filesystem with no Stat op (for example a
// bare test double) offers no way to ask.
func (v *VFS) Mount(fsName, source, mountPath string) kernerr.Error {
	mountPath = normalizeMountPath(mountPath)

	v.mu.Lock()
	ops, ok := v.registry[fsName]
	if !ok {
		v.mu.Unlock()
		return kernerr.NotFound.WithMessage("no filesystem named " + fsName)
	}
	if _, exists := v.mounts[mountPath]; exists {
		v.mu.Unlock()
		return kernerr.AlreadyExists.WithMessage("already a mount at " + mountPath)
	}
	if !v.rootMounted && mountPath != "/" {
		v.mu.Unlock()
		return kernerr.InvalidArgument.WithMessage("root filesystem must be mounted before " + mountPath)
	}
	if mountPath != "/" {
		parent, rel, rerr := v.resolveLocked(mountPath)
		if rerr != nil {
			v.mu.Unlock()
			return kernerr.NotFound.WithMessage("mount: " + mountPath + " does not resolve to an existing directory")
		}
		if parent.ops.Stat != nil {
			stat, serr := parent.ops.Stat(parent.state, rel)
			if serr != nil {
				v.mu.Unlock()
				return kernerr.NotFound.WithMessage("mount: " + mountPath + " does not exist")
			}
			if !stat.IsDir {
				v.mu.Unlock()
				return kernerr.NotDirectory.WithMessage("mount: " + mountPath + " is not a directory")
			}
		}
	}
	v.mu.Unlock()

	if ops.Init == nil {
		return kernerr.NotSupported.WithMessage("filesystem " + fsName + " has no Init")
	}

	state, err := ops.Init(source, v.backingOpen)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.mounts[mountPath]; exists {
		if ops.Release != nil {
			ops.Release(state)
		}
		return kernerr.AlreadyExists.WithMessage("already a mount at " + mountPath)
	}

	node := &mountNode{path: mountPath, fsName: fsName, source: source, state: state, ops: ops}
	v.mounts[mountPath] = node
	if mountPath == "/" {
		v.rootMounted = true
	} else {
		parent, _, _ := v.resolveLocked(parentOf(mountPath))
		if parent != nil {
			parent.childMounts++
		}
	}
	return nil
}

// Unmount detaches the node at mountPath. It fails with kernerr.Busy if any
// file handle is open, or any child mount exists, underneath it.
func (v *VFS) Unmount(mountPath string) kernerr.Error {
	mountPath = normalizeMountPath(mountPath)

	v.mu.Lock()
	node, ok := v.mounts[mountPath]
	if !ok {
		v.mu.Unlock()
		return kernerr.NotFound.WithMessage("no mount at " + mountPath)
	}
	if node.openHandles > 0 || node.childMounts > 0 {
		v.mu.Unlock()
		return kernerr.Busy.WithMessage("mount has open handles or child mounts")
	}
	delete(v.mounts, mountPath)
	if mountPath == "/" {
		v.rootMounted = false
	}
	v.mu.Unlock()

	if node.ops.Release != nil {
		if err := node.ops.Release(node.state); err != nil {
			return err
		}
	}

	if mountPath != "/" {
		v.mu.Lock()
		parent, _, _ := v.resolveLocked(parentOf(mountPath))
		if parent != nil && parent.childMounts > 0 {
			parent.childMounts--
		}
		v.mu.Unlock()
	}
	return nil
}

func parentOf(mountPath string) string {
	idx := strings.LastIndex(mountPath, "/")
	if idx <= 0 {
		return "/"
	}
	return mountPath[:idx]
}

// matches reports whether prefix is a valid mount-path match for path:
// either the root ("/"), an exact match, or a true path-component prefix.
func matches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// resolveLocked walks the mount set choosing the node whose mount path is
// the longest prefix of path. Caller must hold v.mu.
func (v *VFS) resolveLocked(path string) (*mountNode, string, kernerr.Error) {
	var best *mountNode
	for prefix, node := range v.mounts {
		if !matches(prefix, path) {
			continue
		}
		if best == nil || len(prefix) > len(best.path) {
			best = node
		}
	}
	if best == nil {
		return nil, "", kernerr.NotFound.WithMessage("no mount resolves " + path)
	}

	remainder := path[len(best.path):]
	if remainder == "" {
		remainder = "/"
	} else if !strings.HasPrefix(remainder, "/") {
		remainder = "/" + remainder
	}
	return best, remainder, nil
}

// resolve resolves path to (mount, filesystem-relative path).
func (v *VFS) resolve(path string) (*mountNode, string, kernerr.Error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resolveLocked(path)
}

// backingOpen is passed to every filesystem's Init as the callback it may
// use to open its source device by VFS path.
func (v *VFS) backingOpen(path string, flags OpenFlags) (*File, kernerr.Error) {
	return v.Open(path, flags, 0)
}
