// Package boot implements the bootstrap/init daemon: bring up the console
// driver and kernel logging, optionally bring up other collaborators
// (failures aggregated, never fatal), spawn the first program, then run
// the infinite pump loop that is the system's single cooperative point of
// console I/O.
//
// The static mount table is declared as data rather than code, embedded
// from mounts.csv and parsed with github.com/gocarina/gocsv. Non-fatal
// collaborator failures are aggregated with
// github.com/hashicorp/go-multierror.
package boot

import (
	_ "embed"

	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"

	"github.com/devdnl/dnxcore/pkg/appreg"
	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/kalloc"
	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/klog"
	"github.com/devdnl/dnxcore/pkg/ksync"
	"github.com/devdnl/dnxcore/pkg/stdio"
	"github.com/devdnl/dnxcore/pkg/vfs"
	"github.com/devdnl/dnxcore/pkg/vfs/appfs"
	"github.com/devdnl/dnxcore/pkg/vfs/devfs"
	"github.com/devdnl/dnxcore/pkg/vfs/tmpfs"
)

//go:embed mounts.csv
var mountsCSV string

// MountSpec is one row of the static boot mount table.
type MountSpec struct {
	FS     string `csv:"fs"`
	Source string `csv:"source"`
	Target string `csv:"target"`
}

// DefaultMountTable parses the embedded mount table. It is exposed so a
// board's cmd/ entry point can override it for tests.
func DefaultMountTable() ([]MountSpec, error) {
	var specs []MountSpec
	if err := gocsv.UnmarshalString(mountsCSV, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// Collaborator is an optional subsystem bootstrap may bring up after the
// console driver: a peripheral driver, a filesystem mount beyond the
// static table, a network stack. A Collaborator's failure is logged,
// aggregated, and never aborts the daemon.
type Collaborator struct {
	Name string
	Up   func(k *Kernel) error
}

// Kernel is the kernel context: it bundles every subsystem the init
// daemon drives — allocator, scheduler, driver framework, VFS,
// application registry, and log sink.
type Kernel struct {
	Alloc     *kalloc.Allocator
	Scheduler ksync.Scheduler
	Drivers   *driver.Framework
	VFS       *vfs.VFS
	Devfs     *devfs.Devfs
	Apps      *appreg.Registry
	Log       klog.Sink

	consoleKey driver.Key
}

// NewKernel wires a fresh kernel context: allocator of heapSize bytes, a
// GoScheduler, an empty driver framework, a VFS with devfs/tmpfs/appfs
// registered (but not yet mounted), and an application registry.
func NewKernel(heapSize uint, logCapacity int) *Kernel {
	sched := ksync.NewGoScheduler()
	alloc := kalloc.New(heapSize)
	fw := driver.New()
	v := vfs.New()
	appsReg := appreg.New(alloc, sched)

	devfsState, devfsDesc := devfs.New(fw)
	_ = v.RegisterFS(devfsDesc)
	_ = v.RegisterFS(tmpfs.New())
	_ = v.RegisterFS(appfs.New(appsReg))

	return &Kernel{
		Alloc:     alloc,
		Scheduler: sched,
		Drivers:   fw,
		VFS:       v,
		Devfs:     devfsState,
		Apps:      appsReg,
		Log:       klog.NewRingSink(logCapacity),
	}
}

// MountAll applies every row of specs in order, stopping at the first
// failure: the mount table must succeed completely for the root filesystem
// and its children to be in a known state before programs run. Every
// non-root target is created as a directory in the namespace visible so
// far before it is mounted, so that the target always resolves to an
// existing directory; an AlreadyExists from a repeated Mkdir is not an
// error here.
func (k *Kernel) MountAll(specs []MountSpec) kernerr.Error {
	for _, spec := range specs {
		if spec.Target != "/" {
			if err := k.VFS.Mkdir(spec.Target, 0755); err != nil && err.Kind() != kernerr.AlreadyExists {
				return err.WithMessage("mkdir " + spec.Target)
			}
		}
		if err := k.VFS.Mount(spec.FS, spec.Source, spec.Target); err != nil {
			return err.WithMessage("mount " + spec.FS + " at " + spec.Target)
		}
	}
	return nil
}

// InitConsole registers the given console driver descriptor (built by the
// caller over the board's real or simulated stdin/stdout via console.New),
// initializes it at devicePath, binds it into devfs, and starts kernel
// logging through it.
func (k *Kernel) InitConsole(devicePath string, desc driver.Descriptor) kernerr.Error {
	if err := k.Drivers.Register(desc); err != nil {
		return err
	}

	key, err := k.Drivers.Init(desc.Name, 0, 0, devicePath, nil)
	if err != nil {
		return err
	}
	k.consoleKey = key
	k.Devfs.Bind(devicePath, key)
	k.Log.Log(klog.LevelInfo, "console driver up at %s", devicePath)
	return nil
}

// BringUpCollaborators runs each Collaborator in order, logging and
// aggregating failures without stopping the sequence.
func (k *Kernel) BringUpCollaborators(collaborators []Collaborator) error {
	var errs *multierror.Error
	for _, c := range collaborators {
		if err := c.Up(k); err != nil {
			k.Log.Log(klog.LevelWarn, "collaborator %s failed: %s", c.Name, err)
			errs = multierror.Append(errs, err)
			continue
		}
		k.Log.Log(klog.LevelInfo, "collaborator %s up", c.Name)
	}
	if errs == nil {
		return nil
	}
	return errs
}

// Run spawns firstProgram with a fresh stdio pair, then pumps console I/O
// until the program signals end-of-program via a status sentinel on
// stdout.
func (k *Kernel) Run(firstProgram string, argv []string) (exitStatus int, err kernerr.Error) {
	pair := stdio.NewPair(stdio.DefaultCapacity)
	inst, err := k.Apps.Spawn(firstProgram, argv, pair)
	if err != nil {
		return 0, err
	}
	k.Log.Log(klog.LevelInfo, "spawned %s as instance %d", firstProgram, inst.ID)

	for {
		idle := true

		if b, ok := pair.PumpStdoutByte(); ok {
			idle = false
			_, _ = k.Drivers.Write(k.consoleKey, []byte{b}, 0, driver.OpenWrite)
			if b == stdio.StatusOK || b == stdio.StatusError {
				status, _ := inst.Task.Join(ksync.MaxDelay)
				k.Log.Log(klog.LevelInfo, "program %s exited status %d", firstProgram, status)
				k.Scheduler.Stop()
				return status, nil
			}
		}

		buf := make([]byte, 1)
		n, rerr := k.Drivers.Read(k.consoleKey, buf, 0, driver.OpenRead)
		if rerr == nil && n > 0 {
			idle = false
			pair.PumpStdinByte(buf[0])
		}

		if idle {
			k.Scheduler.Sleep(ksync.TickDuration)
		}
	}
}

