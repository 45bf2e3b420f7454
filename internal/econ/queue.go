package econ

import (
	"context"
	"errors"
	"sync"
)

var errQueueClosed = errors.New("econ: queue closed")

// fifo is an unbounded first-in-first-out queue shared by one producer side
// and one consumer side. Push never blocks. Pop keeps returning items after
// Close until the queue is empty.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v; it reports false once the queue is closed.
func (q *fifo[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// TryPop returns the head without waiting. err is errQueueClosed only when
// the queue is closed and drained.
func (q *fifo[T]) TryPop() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		if q.closed {
			return zero, false, errQueueClosed
		}
		return zero, false, nil
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return v, true, nil
}

// Pop waits for the head, ctx cancellation, or close-and-drained.
func (q *fifo[T]) Pop(ctx context.Context) (T, error) {
	for {
		v, ok, err := q.TryPop()
		if ok || err != nil {
			return v, err
		}
		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

func (q *fifo[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Discard drops queued items and returns how many were dropped.
func (q *fifo[T]) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *fifo[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fifo[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
