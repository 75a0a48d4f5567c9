// Package eventqueue implements the bounded channel between the device listener and the
// connection server.
//
// The receiving end has a single owner at a time. A consumer obtains it with Acquire and hands
// it back with Release; other consumers block in Acquire meanwhile. Which waiter wins a released
// receiver is unspecified.
package eventqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/leandrodaf/notebridge/sdk/contracts"
	"go.uber.org/atomic"
)

var (
	// ErrChannelClosed is returned once the other end of the queue is gone.
	ErrChannelClosed = errors.New("event channel closed")
	// ErrReleased is returned when a receiver is used after Release.
	ErrReleased = errors.New("receiver released")
)

// DefaultCapacity is the number of outstanding batches used when none is configured.
const DefaultCapacity = 30

// Queue is a fixed-capacity FIFO of event batches.
type Queue struct {
	batches   chan contracts.EventBatch
	owner     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a queue holding at most capacity batches.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		batches: make(chan contracts.EventBatch, capacity),
		owner:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	q.owner <- struct{}{}
	return q
}

// Send enqueues a batch, blocking while the queue is full. It never drops a batch.
func (q *Queue) Send(ctx context.Context, batch contracts.EventBatch) error {
	select {
	case <-q.done:
		return ErrChannelClosed
	default:
	}
	select {
	case q.batches <- batch:
		return nil
	case <-q.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire blocks until the receiving end is free and returns it.
func (q *Queue) Acquire(ctx context.Context) (*Receiver, error) {
	select {
	case <-q.owner:
		return &Receiver{q: q}, nil
	case <-q.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks one end of the queue as gone. Pending and future Send, Acquire and
// Receive calls fail with ErrChannelClosed once buffered batches are drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Len returns the number of queued batches.
func (q *Queue) Len() int {
	return len(q.batches)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.batches)
}

// Receiver is the exclusive receiving end of a Queue.
type Receiver struct {
	q        *Queue
	released atomic.Bool
}

// Receive blocks until a batch is available and returns batches in send order.
func (r *Receiver) Receive(ctx context.Context) (contracts.EventBatch, error) {
	if r.released.Load() {
		return contracts.EventBatch{}, ErrReleased
	}
	select {
	case batch := <-r.q.batches:
		return batch, nil
	case <-r.q.done:
		select {
		case batch := <-r.q.batches:
			return batch, nil
		default:
			return contracts.EventBatch{}, ErrChannelClosed
		}
	case <-ctx.Done():
		return contracts.EventBatch{}, ctx.Err()
	}
}

// Release hands the receiving end back to the queue. It is safe to call more than once.
func (r *Receiver) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.q.owner <- struct{}{}
	}
}
