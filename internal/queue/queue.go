// Package queue implements the intake queue: an unbounded, multi-producer/
// single-consumer FIFO between HTTP handlers and the Dispatcher.
//
// Enqueue must never block the caller on downstream availability and stay
// O(1) amortized, so this is backed by a linked list guarded by a mutex,
// with a semaphore channel waking a blocked Dequeue.
package queue

import (
	"container/list"
	"context"
	"sync"

	"github.com/rinha2025/payment-gateway/internal/model"
)

// Queue is safe for concurrent Enqueue from many goroutines and concurrent
// Dequeue from many goroutines, allowing a fan-out of dispatcher workers.
type Queue struct {
	mu     sync.Mutex
	items  *list.List
	notify chan struct{}
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		items:  list.New(),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends req to the tail. O(1) amortized, never blocks.
func (q *Queue) Enqueue(req model.PaymentRequest) {
	q.mu.Lock()
	q.items.PushBack(req)
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an item is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (model.PaymentRequest, bool) {
	for {
		q.mu.Lock()
		front := q.items.Front()
		if front != nil {
			q.items.Remove(front)
			q.mu.Unlock()
			return front.Value.(model.PaymentRequest), true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
			continue
		case <-ctx.Done():
			return model.PaymentRequest{}, false
		}
	}
}

// Len reports the current queue depth, for observability only.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
