package ksync

import (
	"time"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// Semaphore is a counting semaphore with timed take and interrupt-safe
// give, backed by a buffered channel: capacity is fixed at construction
// and never grows.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with initial tokens available, up to max.
func NewSemaphore(initial, max int) *Semaphore {
	s := &Semaphore{slots: make(chan struct{}, max)}
	for i := 0; i < initial; i++ {
		s.slots <- struct{}{}
	}
	return s
}

// NewBinarySemaphore creates a semaphore that holds at most one token.
func NewBinarySemaphore(initiallyAvailable bool) *Semaphore {
	initial := 0
	if initiallyAvailable {
		initial = 1
	}
	return NewSemaphore(initial, 1)
}

// Take acquires one token, blocking up to timeout.
func (s *Semaphore) Take(timeout time.Duration) kernerr.Error {
	if timeout == 0 {
		select {
		case <-s.slots:
			return nil
		default:
			return kernerr.Timeout.WithMessage("take: no token available")
		}
	}
	if timeout == MaxDelay {
		<-s.slots
		return nil
	}
	select {
	case <-s.slots:
		return nil
	case <-time.After(timeout):
		return kernerr.Timeout.WithMessage("take: timed out waiting for token")
	}
}

// Give returns one token. It never blocks; if the semaphore is already at
// capacity the token is dropped and kernerr.NoSpace is returned.
func (s *Semaphore) Give() kernerr.Error {
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
		return kernerr.NoSpace.WithMessage("give: semaphore already at capacity")
	}
}

// GiveFromISR is the interrupt-safe variant of Give: identical body, but the
// InterruptContext token proves at compile time that the caller is in
// interrupt context and therefore cannot have reached here through a
// blocking path.
func (s *Semaphore) GiveFromISR(_ InterruptContext) kernerr.Error {
	return s.Give()
}
