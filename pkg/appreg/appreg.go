// Package appreg implements the application registry: a static,
// append-only-at-build table of runnable programs, and Spawn, which
// charges a program-instance allocation tag, creates a task running the
// program's entry function, and records its exit status.
package appreg

import (
	"sync"
	"sync/atomic"

	"github.com/devdnl/dnxcore/pkg/kalloc"
	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/ksync"
	"github.com/devdnl/dnxcore/pkg/stdio"
)

// Entry is one statically registered program: a name, its entry function,
// and a hint for how much stack its task should be given.
type Entry struct {
	Name      string
	Func      func(ctx *ProcContext)
	StackHint uint
}

// ProcContext is the argument passed to a program's entry function: its
// argv and its private stdio pair. Terminate must be called exactly once,
// on every exit path.
type ProcContext struct {
	Argv  []string
	Stdio *stdio.Pair

	task    *ksync.Task
	release func()
}

// Terminate frees the instance's stack charge, then records status and
// releases the task.
func (c *ProcContext) Terminate(status int) {
	if c.release != nil {
		c.release()
	}
	c.task.Terminate(status)
}

// Instance is a running or finished spawn of an Entry.
type Instance struct {
	ID    uint32
	Name  string
	Task  *ksync.Task
	Stdio *stdio.Pair
	tag   kalloc.Tag
}

// Registry is the append-only-at-build program table plus the live
// instance list of everything spawned from it.
type Registry struct {
	alloc     *kalloc.Allocator
	scheduler ksync.Scheduler

	mu      sync.Mutex
	entries map[string]Entry
	order   []string

	nextID    atomic.Uint32
	instances map[uint32]*Instance
}

// New creates a registry backed by alloc for program-instance accounting
// and scheduler for task creation.
func New(alloc *kalloc.Allocator, scheduler ksync.Scheduler) *Registry {
	return &Registry{
		alloc:     alloc,
		scheduler: scheduler,
		entries:   make(map[string]Entry),
		instances: make(map[uint32]*Instance),
	}
}

// Register adds e to the table. Registration only happens at startup,
// before any Spawn call; callers must not call Register concurrently with
// Spawn.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; !exists {
		r.order = append(r.order, e.Name)
	}
	r.entries[e.Name] = e
}

// Lookup returns the entry registered under name, or kernerr.NotFound.
func (r *Registry) Lookup(name string) (Entry, kernerr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, kernerr.NotFound.WithMessage("appreg: no program named " + name)
	}
	return e, nil
}

// List returns the registered entries in registration order, for appfs's
// directory listing.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Spawn looks up the name, charges a program-instance allocation tag for
// the task's stack, creates the task running the entry function with argv
// and stdioPair, and records the instance.
func (r *Registry) Spawn(name string, argv []string, stdioPair *stdio.Pair) (*Instance, kernerr.Error) {
	entry, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	id := r.nextID.Add(1)
	tag := kalloc.ProgramTag(id)

	stackHint := entry.StackHint
	if stackHint == 0 {
		stackHint = 4096
	}
	handle, _, err := r.alloc.Allocate(tag, stackHint)
	if err != nil {
		return nil, err
	}

	inst := &Instance{ID: id, Name: name, Stdio: stdioPair, tag: tag}

	task, err := r.scheduler.CreateTask(ksync.TaskOptions{
		Name:      name,
		StackHint: stackHint,
		Joinable:  true,
		Entry: func(t *ksync.Task) {
			var once sync.Once
			release := func() { once.Do(func() { _ = r.alloc.Free(tag, handle) }) }
			defer release()
			ctx := &ProcContext{Argv: argv, Stdio: stdioPair, task: t, release: release}
			entry.Func(ctx)
		},
	})
	if err != nil {
		_ = r.alloc.Free(tag, handle)
		return nil, err
	}

	inst.Task = task
	r.mu.Lock()
	r.instances[id] = inst
	r.mu.Unlock()

	return inst, nil
}

// Instances returns a snapshot of every instance ever spawned, for "ps"
// style inspection.
func (r *Registry) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}
