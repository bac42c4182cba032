// Package ksync provides the scheduler-parameterized synchronization
// primitives the core depends on: recursive mutexes, semaphores, bounded
// queues, flag groups, and tasks, every blocking call accepting a bounded
// timeout. MaxDelay means "wait until cancellation"; a zero timeout means
// "try". There is no separate cancellation: a waiter that times out simply
// observes kernerr.Timeout.
package ksync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// MaxDelay tells a wait to block until the operation can complete, with no
// timeout.
const MaxDelay time.Duration = -1

// Tick is the scheduler's time unit; the rate is platform-defined.
type Tick uint64

// TaskStatus is the terminal or running state of a Task.
type TaskStatus int32

const (
	TaskRunning TaskStatus = iota
	TaskTerminated
)

// TaskOptions configures a task created by a Scheduler.
type TaskOptions struct {
	Name      string
	Priority  int
	StackHint uint
	Entry     func(t *Task)
	Joinable  bool
}

// Task is a handle to one scheduled unit of execution.
type Task struct {
	id       uint64
	name     string
	priority int
	status   atomic.Int32
	exitCode atomic.Int32
	done     chan struct{}
	joinable bool
}

func (t *Task) ID() uint64    { return t.id }
func (t *Task) Name() string  { return t.name }
func (t *Task) Priority() int { return t.priority }

func (t *Task) Status() TaskStatus {
	return TaskStatus(t.status.Load())
}

// Terminate marks the task as finished with the given status and releases
// its task resources. Called by the task's own entry function on return, or
// by a supervisor to force an end.
func (t *Task) Terminate(status int) {
	if t.status.CompareAndSwap(int32(TaskRunning), int32(TaskTerminated)) {
		t.exitCode.Store(int32(status))
		close(t.done)
	}
}

// Join blocks until the task terminates or the timeout elapses.
func (t *Task) Join(timeout time.Duration) (status int, err kernerr.Error) {
	if timeout == MaxDelay {
		<-t.done
		return int(t.exitCode.Load()), nil
	}
	select {
	case <-t.done:
		return int(t.exitCode.Load()), nil
	case <-time.After(timeout):
		return 0, kernerr.Timeout.WithMessage("join: task did not terminate in time")
	}
}

// Scheduler is the small abstraction the core is parameterized over: a
// preemptive, priority-based, tick-driven execution model over a single
// processor. GoScheduler is the only implementation provided; it maps tasks
// onto goroutines, which is a faithful enough model of cooperative
// scheduling for everything above it in the stack.
type Scheduler interface {
	CreateTask(opts TaskOptions) (*Task, kernerr.Error)
	Sleep(d time.Duration)
	Now() Tick
	Stop()
}

// GoScheduler is the reference Scheduler.
type GoScheduler struct {
	mu      sync.Mutex
	tasks   map[uint64]*Task
	nextID  uint64
	start   time.Time
	tickDur time.Duration
	stopped atomic.Bool
}

// TickDuration is the platform-defined rate of one scheduler tick.
const TickDuration = time.Millisecond

// NewGoScheduler constructs a GoScheduler whose tick counter starts now.
func NewGoScheduler() *GoScheduler {
	return &GoScheduler{
		tasks:   make(map[uint64]*Task),
		start:   time.Now(),
		tickDur: TickDuration,
	}
}

// CreateTask creates a task with the given stack hint, priority, and entry
// function, and starts it running immediately.
func (s *GoScheduler) CreateTask(opts TaskOptions) (*Task, kernerr.Error) {
	if opts.Entry == nil {
		return nil, kernerr.InvalidArgument.WithMessage("task entry must not be nil")
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	t := &Task{
		id:       id,
		name:     opts.Name,
		priority: opts.Priority,
		done:     make(chan struct{}),
		joinable: opts.Joinable,
	}

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()

	go func() {
		defer func() {
			t.Terminate(0)
			s.mu.Lock()
			delete(s.tasks, id)
			s.mu.Unlock()
		}()
		opts.Entry(t)
	}()

	return t, nil
}

// Sleep blocks the calling goroutine for d; d == MaxDelay never returns.
func (s *GoScheduler) Sleep(d time.Duration) {
	if d == MaxDelay {
		select {}
	}
	time.Sleep(d)
}

// Now returns the current tick count since the scheduler started.
func (s *GoScheduler) Now() Tick {
	return Tick(time.Since(s.start) / s.tickDur)
}

// Stop marks the scheduler stopped. GoScheduler has no global halt for
// goroutines already running; callers observe Stopped() and exit
// cooperatively.
func (s *GoScheduler) Stop() {
	s.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (s *GoScheduler) Stopped() bool {
	return s.stopped.Load()
}
