// Package byteq provides a fixed-capacity byte FIFO that is safe to use from
// task code and completion handlers at the same time.
//
// A push on a full queue and a pop on an empty queue fail immediately; nothing
// is ever overwritten and no call suspends.
package byteq

import (
	"errors"
	"sync"

	"usart-go/x/critical"
)

var ErrNoMemory = errors.New("byteq: heap exhausted")

// Queue is a bounded multi-producer, multi-consumer byte queue.
type Queue struct {
	cs   critical.Section
	buf  []byte
	head int // next slot to pop
	n    int // bytes stored

	readable chan struct{} // 0->>0 available edge
}

// New returns an empty queue holding at most capacity bytes.
func New(capacity int) *Queue {
	if capacity < 1 {
		panic("byteq: capacity must be >= 1")
	}
	return &Queue{
		buf:      make([]byte, capacity),
		readable: make(chan struct{}, 1),
	}
}

func (q *Queue) Cap() int { return len(q.buf) }

func (q *Queue) Len() int {
	q.cs.Enter()
	n := q.n
	q.cs.Exit()
	return n
}

// TryPush appends b. It returns false, leaving the queue untouched, when full.
func (q *Queue) TryPush(b byte) bool {
	q.cs.Enter()
	if q.n == len(q.buf) {
		q.cs.Exit()
		return false
	}
	idx := q.head + q.n
	if idx >= len(q.buf) {
		idx -= len(q.buf)
	}
	q.buf[idx] = b
	q.n++
	wasEmpty := q.n == 1
	q.cs.Exit()

	if wasEmpty {
		select {
		case q.readable <- struct{}{}:
		default:
		}
	}
	return true
}

// TryPop removes the oldest byte. ok is false when the queue is empty.
func (q *Queue) TryPop() (b byte, ok bool) {
	q.cs.Enter()
	if q.n == 0 {
		q.cs.Exit()
		return 0, false
	}
	b = q.buf[q.head]
	q.head++
	if q.head == len(q.buf) {
		q.head = 0
	}
	q.n--
	q.cs.Exit()
	return b, true
}

// Readable is a coalesced notification sent when the queue goes from empty
// to non-empty. Callers must re-check state after waking.
func (q *Queue) Readable() <-chan struct{} { return q.readable }

// Heap is a fixed byte budget that queues are carved from, standing in for
// the RTOS heap: once it is spent, further allocations fail.
type Heap struct {
	mu    sync.Mutex
	limit int // 0 => unbounded
	used  int
}

// NewHeap returns a heap of size bytes. A size of 0 never runs out.
func NewHeap(size int) *Heap {
	if size < 0 {
		size = 0
	}
	return &Heap{limit: size}
}

// New allocates a queue of the given capacity from the heap.
func (h *Heap) New(capacity int) (*Queue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.limit > 0 && h.used+capacity > h.limit {
		return nil, ErrNoMemory
	}
	h.used += capacity
	return New(capacity), nil
}
