// Package worker provides a bounded pool of goroutines that drain a job
// queue. The pairing engine uses it to fan mainshock searches out across
// CPUs.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ProcessFunc handles a single job. A returned error is collected and
// reported by Stop; it does not stop the pool.
type ProcessFunc[J any] func(ctx context.Context, job J) error

// Pool runs a fixed number of workers over a buffered job channel.
type Pool[J any] struct {
	numWorkers int
	jobs       chan J
	processor  ProcessFunc[J]
	wg         sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewPool creates a pool. numWorkers below 1 is treated as 1.
func NewPool[J any](numWorkers, bufferSize int, processor ProcessFunc[J]) *Pool[J] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool[J]{
		numWorkers: numWorkers,
		jobs:       make(chan J, bufferSize),
		processor:  processor,
	}
}

// Start launches the workers. They exit when the job channel is closed by
// Stop or when ctx is cancelled, whichever comes first.
func (p *Pool[J]) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool[J]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
			}
		}
	}
}

// Submit enqueues a job, blocking while the buffer is full. It returns
// ctx.Err() if ctx is cancelled first.
func (p *Pool[J]) Submit(ctx context.Context, job J) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Stop closes the queue, waits for the workers to exit, and returns the
// joined processing errors. Stop must be called exactly once.
func (p *Pool[J]) Stop() error {
	close(p.jobs)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}
