package ksync

import (
	"time"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// Queue is a bounded queue of fixed-size items with timed send and timed
// receive, and interrupt-safe variants of both ends.
type Queue struct {
	items    chan []byte
	itemSize int
}

// NewQueue creates a queue holding up to capacity items, each itemSize
// bytes.
func NewQueue(capacity, itemSize int) *Queue {
	return &Queue{
		items:    make(chan []byte, capacity),
		itemSize: itemSize,
	}
}

func (q *Queue) checkSize(item []byte) kernerr.Error {
	if len(item) != q.itemSize {
		return kernerr.InvalidArgument.WithMessage("queue item size mismatch")
	}
	return nil
}

// Send enqueues a copy of item, blocking up to timeout if the queue is full.
func (q *Queue) Send(item []byte, timeout time.Duration) kernerr.Error {
	if err := q.checkSize(item); err != nil {
		return err
	}
	cp := append([]byte(nil), item...)

	if timeout == 0 {
		select {
		case q.items <- cp:
			return nil
		default:
			return kernerr.Timeout.WithMessage("send: queue full")
		}
	}
	if timeout == MaxDelay {
		q.items <- cp
		return nil
	}
	select {
	case q.items <- cp:
		return nil
	case <-time.After(timeout):
		return kernerr.Timeout.WithMessage("send: timed out, queue full")
	}
}

// SendFromISR is the non-blocking, interrupt-safe variant of Send.
func (q *Queue) SendFromISR(_ InterruptContext, item []byte) kernerr.Error {
	if err := q.checkSize(item); err != nil {
		return err
	}
	cp := append([]byte(nil), item...)
	select {
	case q.items <- cp:
		return nil
	default:
		return kernerr.NoSpace.WithMessage("sendFromISR: queue full")
	}
}

// Receive copies one item into buf, blocking up to timeout if the queue is
// empty. buf must be itemSize bytes.
func (q *Queue) Receive(buf []byte, timeout time.Duration) kernerr.Error {
	if len(buf) != q.itemSize {
		return kernerr.InvalidArgument.WithMessage("queue buffer size mismatch")
	}

	if timeout == 0 {
		select {
		case item := <-q.items:
			copy(buf, item)
			return nil
		default:
			return kernerr.Timeout.WithMessage("receive: queue empty")
		}
	}
	if timeout == MaxDelay {
		item := <-q.items
		copy(buf, item)
		return nil
	}
	select {
	case item := <-q.items:
		copy(buf, item)
		return nil
	case <-time.After(timeout):
		return kernerr.Timeout.WithMessage("receive: timed out, queue empty")
	}
}

// ReceiveFromISR is the non-blocking, interrupt-safe variant of Receive.
func (q *Queue) ReceiveFromISR(_ InterruptContext, buf []byte) kernerr.Error {
	if len(buf) != q.itemSize {
		return kernerr.InvalidArgument.WithMessage("queue buffer size mismatch")
	}
	select {
	case item := <-q.items:
		copy(buf, item)
		return nil
	default:
		return kernerr.Timeout.WithMessage("receiveFromISR: queue empty")
	}
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	return len(q.items)
}
