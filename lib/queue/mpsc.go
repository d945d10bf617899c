// Package queue provides the unbounded multi-producer single-consumer queue that feeds the
// reply writer of a connection.
//
// Features and Guarantees:
//
//   - Lock-Free Push: producers append with atomic operations and never block on the consumer
//   - Unbounded: the queue grows as needed, a slow connection never stalls the dispatcher
//   - FIFO per Producer: items of a single producer are delivered in push order. Items of
//     concurrent producers are ordered by which Push completed first.
//   - Drain on Close: items pushed before Close are still delivered, then Recv is closed
package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// MPSC is a linked list queue with a sentinel head. Producers CAS onto the tail,
// a single internal goroutine moves items from the head to the Recv channel.
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan *T
	closed atomic.Bool
	length atomic.Int64

	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a queue and starts its delivery goroutine
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.deliver()
	return q
}

// Push appends value. It returns false if value is nil or the queue is closed.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	var backoff uint8

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// a failed CAS means another producer already advanced the tail
				q.tail.CompareAndSwap(tail, n)
				q.length.Add(1)
				q.wake()
				return true
			}
		} else {
			q.tail.CompareAndSwap(tail, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the delivery goroutine. Taking the lock orders the signal after a
// concurrent empty check, so no wakeup is lost.
func (q *MPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// deliver moves items to the out channel until the queue is closed and empty
func (q *MPSC[T]) deliver() {
	defer close(q.out)

	for {
		delivered := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			next.value = nil
			q.length.Add(-1)
			q.out <- value
		}

		if delivered {
			continue
		}

		q.mu.Lock()
		for q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.cond.Wait()
		}
		empty := q.head.Load().next.Load() == nil
		q.mu.Unlock()

		if empty && q.closed.Load() {
			return
		}
	}
}

// Recv returns the channel items are delivered on. It is closed after Close once
// all pending items were received.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close rejects further pushes. Pending items are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed reports whether Close was called
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items pushed but not yet taken by the delivery goroutine
func (q *MPSC[T]) Len() int {
	return int(q.length.Load())
}
