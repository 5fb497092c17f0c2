// Package memory provides queue implementations for local development and
// single-process serving.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mchale/favicon-harvester/internal/batch"
)

// Queue is a bounded in-memory batch queue with context-aware operations.
type Queue struct {
	ch      chan batch.Item
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan batch.Item, capacity),
	}
}

// Enqueue pushes a batch into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item batch.Item) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next batch, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (batch.Item, error) {
	select {
	case <-ctx.Done():
		return batch.Item{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return batch.Item{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
