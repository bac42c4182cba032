// Package driver implements the device driver framework: a compile-time
// registry of driver descriptors, and the per-instance lifecycle and
// operation dispatch for instances addressed by (name, major, minor). A
// descriptor supplies the behavior, an instance owns the state, and
// callers never see the state directly.
package driver

import (
	"sync"

	"github.com/devdnl/dnxcore/pkg/ioctlnum"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// OpenFlags mirror the subset of POSIX open(2) flags the framework cares
// about.
type OpenFlags uint8

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenAppend
	OpenExclusive
)

// Kind distinguishes a stat result's device class, paralleling the subset
// of os.FileMode's type bits relevant to a driver endpoint.
type Kind uint8

const (
	KindChar Kind = iota
	KindBlock
)

// Stat is the information a driver reports about its instance.
type Stat struct {
	Size        int64
	Kind        Kind
	Permissions uint32
}

// State is the opaque, boxed state a driver's Init produces. Never an
// unsafe pointer: callers only ever hold a Key, and the framework is the
// only thing that dereferences State.
type State interface{}

// Ops is the operation vtable a descriptor supplies. Every method is
// optional except Init. A nil Read, Write, Ioctl or Stat makes the call
// return kernerr.NotSupported; a nil Release, Open, Close or Flush
// succeeds as a no-op.
type Ops struct {
	Init    func(major, minor int, devicePath string, config any) (State, kernerr.Error)
	Release func(s State) kernerr.Error
	Open    func(s State, flags OpenFlags) kernerr.Error
	Close   func(s State, force bool) kernerr.Error
	Read    func(s State, dst []byte, offset int64, flags OpenFlags) (int, kernerr.Error)
	Write   func(s State, src []byte, offset int64, flags OpenFlags) (int, kernerr.Error)
	Ioctl   func(s State, request ioctlnum.Number, arg any) (any, kernerr.Error)
	Flush   func(s State) kernerr.Error
	Stat    func(s State) (Stat, kernerr.Error)
}

// Descriptor is the immutable, compile-time record a driver registers:
// a name plus its operation table. Nothing more.
type Descriptor struct {
	Name string
	Ops  Ops
}

// Key addresses one driver instance.
type Key struct {
	Name  string
	Major int
	Minor int
}

type instance struct {
	key        Key
	state      State
	devicePath string
	openCount  int
	leaked     bool
}

// Framework is the live registry of descriptors and instances. The zero
// value is not usable; construct one with New.
type Framework struct {
	mu          sync.Mutex
	descriptors map[string]Descriptor
	instances   map[Key]*instance
}

func New() *Framework {
	return &Framework{
		descriptors: make(map[string]Descriptor),
		instances:   make(map[Key]*instance),
	}
}

// Register adds a compile-time descriptor to the registry. It is normally
// called once per driver at bootstrap, before any Init.
func (f *Framework) Register(d Descriptor) kernerr.Error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.descriptors[d.Name]; exists {
		return kernerr.AlreadyExists.WithMessage("driver " + d.Name + " already registered")
	}
	f.descriptors[d.Name] = d
	return nil
}

// Init creates an instance of the named driver at (major, minor). It
// returns kernerr.Busy if that key is already initialized — including when
// the previous instance leaked on a failed Release. Init failure leaves no
// state: if the driver's Init callback fails, nothing is recorded.
func (f *Framework) Init(name string, major, minor int, devicePath string, config any) (Key, kernerr.Error) {
	f.mu.Lock()
	desc, ok := f.descriptors[name]
	if !ok {
		f.mu.Unlock()
		return Key{}, kernerr.NotFound.WithMessage("no driver named " + name)
	}

	key := Key{Name: name, Major: major, Minor: minor}
	if existing, exists := f.instances[key]; exists {
		f.mu.Unlock()
		if existing.leaked {
			return Key{}, kernerr.Busy.WithMessage("instance leaked, awaiting last close")
		}
		return Key{}, kernerr.Busy.WithMessage("instance already initialized")
	}
	f.mu.Unlock()

	if desc.Ops.Init == nil {
		return Key{}, kernerr.NotSupported.WithMessage("driver " + name + " has no Init")
	}

	state, err := desc.Ops.Init(major, minor, devicePath, config)
	if err != nil {
		return Key{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.instances[key]; exists {
		// Lost a race between the unlock above and here; undo our Init.
		if desc.Ops.Release != nil {
			desc.Ops.Release(state)
		}
		return Key{}, kernerr.Busy.WithMessage("instance already initialized")
	}
	f.instances[key] = &instance{key: key, state: state, devicePath: devicePath}
	return key, nil
}

// Release tears down an instance. It fails with kernerr.Busy while the
// instance has open handles. A Release that the driver itself fails is
// logged by the caller and the instance is marked leaked: a subsequent Init
// at the same key returns kernerr.Busy until the last handle closes.
func (f *Framework) Release(key Key) kernerr.Error {
	f.mu.Lock()
	inst, ok := f.instances[key]
	if !ok {
		f.mu.Unlock()
		return kernerr.NotFound.WithMessage("no instance at this key")
	}
	if inst.openCount > 0 {
		f.mu.Unlock()
		return kernerr.Busy.WithMessage("instance has open handles")
	}
	desc := f.descriptors[key.Name]
	f.mu.Unlock()

	if desc.Ops.Release != nil {
		if err := desc.Ops.Release(inst.state); err != nil {
			f.mu.Lock()
			inst.leaked = true
			f.mu.Unlock()
			return err
		}
	}

	f.mu.Lock()
	delete(f.instances, key)
	f.mu.Unlock()
	return nil
}

// lookup finds the live instance and its descriptor for key.
func (f *Framework) lookup(key Key) (*instance, Descriptor, kernerr.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inst, ok := f.instances[key]
	if !ok {
		return nil, Descriptor{}, kernerr.NotFound.WithMessage("no instance at this key")
	}
	return inst, f.descriptors[key.Name], nil
}

// Open increments the instance's reference count and calls the driver's
// Open.
func (f *Framework) Open(key Key, flags OpenFlags) kernerr.Error {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return err
	}
	if desc.Ops.Open != nil {
		if err := desc.Ops.Open(inst.state, flags); err != nil {
			return err
		}
	}
	f.mu.Lock()
	inst.openCount++
	f.mu.Unlock()
	return nil
}

// Close decrements the instance's reference count and calls the driver's
// Close. force overrides a driver that would otherwise refuse with Busy.
func (f *Framework) Close(key Key, force bool) kernerr.Error {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return err
	}
	if desc.Ops.Close != nil {
		if err := desc.Ops.Close(inst.state, force); err != nil {
			return err
		}
	}
	f.mu.Lock()
	if inst.openCount > 0 {
		inst.openCount--
	}
	if inst.leaked && inst.openCount == 0 {
		delete(f.instances, key)
	}
	f.mu.Unlock()
	return nil
}

// Read, Write, Ioctl, Flush, and Stat below dispatch straight to the
// instance's driver without taking the framework mutex: the framework-wide
// mutex only serializes registry structure changes (Init/Release); lookups
// take it briefly inside lookup.

func (f *Framework) Read(key Key, dst []byte, offset int64, flags OpenFlags) (int, kernerr.Error) {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return 0, err
	}
	if desc.Ops.Read == nil {
		return 0, kernerr.NotSupported.WithMessage("driver does not support Read")
	}
	return desc.Ops.Read(inst.state, dst, offset, flags)
}

func (f *Framework) Write(key Key, src []byte, offset int64, flags OpenFlags) (int, kernerr.Error) {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return 0, err
	}
	if desc.Ops.Write == nil {
		return 0, kernerr.NotSupported.WithMessage("driver does not support Write")
	}
	return desc.Ops.Write(inst.state, src, offset, flags)
}

func (f *Framework) Ioctl(key Key, request ioctlnum.Number, arg any) (any, kernerr.Error) {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return nil, err
	}
	if desc.Ops.Ioctl == nil {
		return nil, kernerr.NotSupported.WithMessage("driver does not support Ioctl")
	}
	return desc.Ops.Ioctl(inst.state, request, arg)
}

func (f *Framework) Flush(key Key) kernerr.Error {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return err
	}
	if desc.Ops.Flush == nil {
		return nil
	}
	return desc.Ops.Flush(inst.state)
}

func (f *Framework) Stat(key Key) (Stat, kernerr.Error) {
	inst, desc, err := f.lookup(key)
	if err != nil {
		return Stat{}, err
	}
	if desc.Ops.Stat == nil {
		return Stat{}, kernerr.NotSupported.WithMessage("driver does not support Stat")
	}
	return desc.Ops.Stat(inst.state)
}

// DevicePath returns the device path an instance was bound to at Init, used
// by devfs to build the path-to-driver mapping.
func (f *Framework) DevicePath(key Key) (string, kernerr.Error) {
	inst, _, err := f.lookup(key)
	if err != nil {
		return "", err
	}
	return inst.devicePath, nil
}

// Instances returns a snapshot of every live instance's key, for listing
// (e.g. appfs-adjacent /dev enumeration).
func (f *Framework) Instances() []Key {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]Key, 0, len(f.instances))
	for k := range f.instances {
		keys = append(keys, k)
	}
	return keys
}
