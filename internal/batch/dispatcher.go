package batch

import (
	"context"
	"fmt"
	"sync"
)

// Dispatcher fans queued batches out to a pool of runners.
type Dispatcher struct {
	queue   Queue
	runners []*Runner
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(queue Queue, runners []*Runner) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		runners: runners,
	}
}

// Run starts all runners and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, r := range d.runners {
		wg.Add(1)
		go func(rn *Runner) {
			defer wg.Done()
			rn.Run(ctx)
		}(r)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item Item) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
