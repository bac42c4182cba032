package ksync

import (
	"sync"
	"time"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// FlagGroup is a bit mask with wait-for-any / wait-for-all semantics and
// timed wait.
type FlagGroup struct {
	mu   sync.Mutex
	bits uint32
	gen  chan struct{} // closed and replaced on every Set/Clear to wake waiters
}

func NewFlagGroup() *FlagGroup {
	return &FlagGroup{gen: make(chan struct{})}
}

// Set ORs bits into the group and wakes any waiter whose condition is now
// satisfied.
func (f *FlagGroup) Set(bits uint32) {
	f.mu.Lock()
	f.bits |= bits
	old := f.gen
	f.gen = make(chan struct{})
	f.mu.Unlock()
	close(old)
}

// Clear clears bits in the group.
func (f *FlagGroup) Clear(bits uint32) {
	f.mu.Lock()
	f.bits &^= bits
	old := f.gen
	f.gen = make(chan struct{})
	f.mu.Unlock()
	close(old)
}

// Value returns the current bit mask.
func (f *FlagGroup) Value() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits
}

func (f *FlagGroup) snapshot() (uint32, chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits, f.gen
}

// WaitAny blocks until at least one bit in mask is set, or timeout elapses,
// returning the full bit mask observed at that point.
func (f *FlagGroup) WaitAny(mask uint32, timeout time.Duration) (uint32, kernerr.Error) {
	return f.wait(mask, timeout, func(bits uint32) bool { return bits&mask != 0 })
}

// WaitAll blocks until every bit in mask is set, or timeout elapses.
func (f *FlagGroup) WaitAll(mask uint32, timeout time.Duration) (uint32, kernerr.Error) {
	return f.wait(mask, timeout, func(bits uint32) bool { return bits&mask == mask })
}

func (f *FlagGroup) wait(mask uint32, timeout time.Duration, satisfied func(uint32) bool) (uint32, kernerr.Error) {
	var deadline time.Time
	hasDeadline := timeout != MaxDelay
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for {
		bits, gen := f.snapshot()
		if satisfied(bits) {
			return bits, nil
		}
		if timeout == 0 {
			return bits, kernerr.Timeout.WithMessage("wait: flags not satisfied, timeout is zero")
		}

		if !hasDeadline {
			<-gen
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return bits, kernerr.Timeout.WithMessage("wait: timed out waiting for flags")
		}
		select {
		case <-gen:
		case <-time.After(remaining):
			bits, _ = f.snapshot()
			if satisfied(bits) {
				return bits, nil
			}
			return bits, kernerr.Timeout.WithMessage("wait: timed out waiting for flags")
		}
	}
}
