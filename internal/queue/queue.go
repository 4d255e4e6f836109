// Package queue provides the unbounded multi-producer queue behind the display dispatcher.
//
// Producers are the session, serial and scheduler goroutines; the single consumer is
// the dispatcher loop. Enqueue never blocks, so a slow renderer cannot stall a network reader.
package queue

import (
	"sync/atomic"
)

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Queue is a lock-free FIFO queue (Michael-Scott) safe for concurrent use.
type Queue[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	length atomic.Int32
	notify chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{notify: make(chan struct{}, 1)}
	sentinel := &node[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Enqueue adds an item to the tail of the queue and wakes a waiting consumer.
func (q *Queue[T]) Enqueue(item T) {
	n := &node[T]{value: item}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// tail is falling behind
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.length.Add(1)
			break
		}
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the item at the head of the queue.
// ok is false when the queue is empty.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				return item, false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		// read value before CAS, another dequeue may advance past next
		value := next.value
		if q.head.CompareAndSwap(head, next) {
			q.length.Add(-1)
			return value, true
		}
	}
}

// Ready returns a channel that receives after an Enqueue.
// A consumer drains the queue with Dequeue after every receive.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.notify
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return q.length.Load() == 0
}

// Length returns the number of items in the queue.
func (q *Queue[T]) Length() int {
	return int(q.length.Load())
}
