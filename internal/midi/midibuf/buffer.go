// Package midibuf turns callback-delivered MIDI input into the polled, bounded reads of
// contracts.InputStream.
package midibuf

import (
	"errors"
	"sync"

	"github.com/leandrodaf/notebridge/sdk/contracts"
	"go.uber.org/atomic"
)

// ErrBufferOverflow is reported once by Read after events were dropped because the buffer was full.
var ErrBufferOverflow = errors.New("midi input buffer overflow")

// Buffer is a fixed-capacity FIFO of raw events filled by a driver callback and drained by Read.
type Buffer struct {
	mu       sync.Mutex
	events   []contracts.RawEvent
	head     int
	size     int
	overflow atomic.Bool
	dropped  atomic.Uint64
}

// New creates a buffer holding at most capacity events.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{events: make([]contracts.RawEvent, capacity)}
}

// Push appends an event. When the buffer is full the event is dropped and the overflow is
// reported by the next Read.
func (b *Buffer) Push(ev contracts.RawEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == len(b.events) {
		b.overflow.Store(true)
		b.dropped.Inc()
		return false
	}
	b.events[(b.head+b.size)%len(b.events)] = ev
	b.size++
	return true
}

// Read removes and returns up to max events in push order without blocking.
// After an overflow it returns ErrBufferOverflow once and leaves the buffered events in place.
func (b *Buffer) Read(max int) ([]contracts.RawEvent, error) {
	if b.overflow.CompareAndSwap(true, false) {
		return nil, ErrBufferOverflow
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.size
	if max < n {
		n = max
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]contracts.RawEvent, n)
	for i := range out {
		out[i] = b.events[(b.head+i)%len(b.events)]
	}
	b.head = (b.head + n) % len(b.events)
	b.size -= n
	return out, nil
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped returns how many events were discarded since the buffer was created.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Load()
}
