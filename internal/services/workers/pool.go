package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/arbor"
)

// ErrPoolClosed is returned by Submit once the pool has stopped accepting jobs
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Job represents a work item to be processed
type Job func(ctx context.Context) error

// Pool runs jobs on a fixed number of workers.
// The first failing job cancels the pool context so queued and
// in-flight jobs can stop early; Wait reports that first error.
type Pool struct {
	jobs       chan Job
	maxWorkers int
	wg         sync.WaitGroup
	parent     context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
	firstErr   error
	errorsMu   sync.Mutex
	logger     arbor.ILogger
}

// NewPool creates a new worker pool bound to the parent context
func NewPool(parent context.Context, maxWorkers int, logger arbor.ILogger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		jobs:       make(chan Job, maxWorkers*2),
		maxWorkers: maxWorkers,
		parent:     parent,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Start begins the worker pool
func (p *Pool) Start() {
	p.logger.Debug().
		Int("max_workers", p.maxWorkers).
		Msg("Starting worker pool")

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit adds a job to the pool
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Wait closes the queue, waits for all workers and returns the first job
// error. A cancelled parent context is reported when no job failed.
func (p *Pool) Wait() error {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()

	p.errorsMu.Lock()
	err := p.firstErr
	p.errorsMu.Unlock()

	if err == nil {
		err = p.parent.Err()
	}
	p.cancel()
	return err
}

// Shutdown cancels outstanding work and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.cancel()
	_ = p.Wait()
	p.logger.Debug().Msg("Worker pool shutdown complete")
}

func (p *Pool) fail(err error) {
	p.errorsMu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.errorsMu.Unlock()
	p.cancel()
}

// worker processes jobs from the queue
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			if err := job(p.ctx); err != nil {
				p.logger.Warn().
					Err(err).
					Int("worker_id", id).
					Msg("Job failed")
				p.fail(err)
			}

		case <-p.ctx.Done():
			return
		}
	}
}
