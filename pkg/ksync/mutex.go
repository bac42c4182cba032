package ksync

import (
	"sync"
	"time"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// Mutex is a recursive mutex with timed acquire, re-entrant by owner task.
type Mutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner *Task
	depth int
}

func NewMutex() *Mutex {
	m := &Mutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Lock acquires the mutex for owner, blocking up to timeout. A task that
// already holds the mutex may re-enter; each Lock must be matched by an
// Unlock. timeout == MaxDelay waits indefinitely; timeout == 0 only tries.
func (m *Mutex) Lock(owner *Task, timeout time.Duration) kernerr.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == owner && m.depth > 0 {
		m.depth++
		return nil
	}

	if m.owner == nil {
		m.owner = owner
		m.depth = 1
		return nil
	}

	if timeout == 0 {
		return kernerr.Timeout.WithMessage("lock: mutex held, timeout is zero")
	}

	deadline, hasDeadline := time.Now().Add(timeout), timeout != MaxDelay
	for m.owner != nil {
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return kernerr.Timeout.WithMessage("lock: timed out waiting for mutex")
			}
			if !waitWithTimeout(m.cond, remaining) {
				return kernerr.Timeout.WithMessage("lock: timed out waiting for mutex")
			}
		} else {
			m.cond.Wait()
		}
	}

	m.owner = owner
	m.depth = 1
	return nil
}

// Unlock releases one level of recursion. It fails with kernerr.InvalidArgument
// if owner does not currently hold the mutex.
func (m *Mutex) Unlock(owner *Task) kernerr.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != owner {
		return kernerr.InvalidArgument.WithMessage("unlock: caller does not hold mutex")
	}

	m.depth--
	if m.depth == 0 {
		m.owner = nil
		m.cond.Broadcast()
	}
	return nil
}

// waitWithTimeout wakes cond.Wait() after d elapses if nothing else
// broadcasts first. sync.Cond has no native deadline, so a watcher
// goroutine performs the broadcast; it is harmless if it fires after the
// condition already changed.
func waitWithTimeout(cond *sync.Cond, d time.Duration) bool {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()

	before := time.Now()
	cond.Wait()
	return time.Since(before) < d
}
