package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// JobHandler is a function that processes a TransferJob.
type JobHandler func(context.Context, TransferJob) error

// WorkerPool manages a dynamic set of workers processing jobs.
// The first handler error stops all workers from pulling further jobs;
// jobs already running are allowed to finish.
type WorkerPool struct {
	jobChan JobChannel
	handler JobHandler

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	workers     map[int]chan struct{}
	workerCount int
	nextID      int
	wg          sync.WaitGroup

	failed   atomic.Bool
	errOnce  sync.Once
	firstErr error
}

// NewWorkerPool creates a new dynamic worker pool.
func NewWorkerPool(ctx context.Context, jobChan JobChannel, handler JobHandler) *WorkerPool {
	poolCtx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		jobChan: jobChan,
		handler: handler,
		parent:  ctx,
		ctx:     poolCtx,
		cancel:  cancel,
		workers: make(map[int]chan struct{}),
	}
}

// SetWorkerCount scales the number of workers up or down gracefully.
func (p *WorkerPool) SetWorkerCount(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.workerCount < count {
		p.addWorker()
	}

	for p.workerCount > count {
		p.removeWorker()
	}
}

// WorkerCount returns the current target number of workers.
func (p *WorkerPool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workerCount
}

func (p *WorkerPool) addWorker() {
	quitChan := make(chan struct{})
	id := p.nextID
	p.nextID++
	p.workers[id] = quitChan
	p.workerCount++
	p.wg.Add(1)

	go func(id int, quit chan struct{}) {
		defer p.wg.Done()
		for {
			// Prioritize quit, failure and cancellation over new work.
			if p.failed.Load() {
				return
			}
			select {
			case <-quit:
				return
			case <-p.ctx.Done():
				return
			default:
			}

			select {
			case <-quit:
				return
			case <-p.ctx.Done():
				return
			case job, ok := <-p.jobChan:
				if !ok {
					return
				}
				if p.failed.Load() {
					return
				}
				// Handlers get the caller's context, never the pool's.
				if err := p.handler(p.parent, job); err != nil {
					p.fail(err)
					return
				}
			}
		}
	}(id, quitChan)
}

func (p *WorkerPool) removeWorker() {
	for id, quit := range p.workers {
		close(quit) // worker exits once its current job is done
		delete(p.workers, id)
		p.workerCount--
		return
	}
}

func (p *WorkerPool) fail(err error) {
	p.errOnce.Do(func() {
		p.firstErr = err
		p.failed.Store(true)
	})
}

// Err returns the first handler error, if any.
func (p *WorkerPool) Err() error {
	if !p.failed.Load() {
		return nil
	}
	return p.firstErr
}

// Wait blocks until every worker has exited, which happens once the job
// channel is closed and drained, a handler failed, or the pool was stopped.
// It returns the first handler error, or the context error if the caller's
// context was cancelled.
func (p *WorkerPool) Wait() error {
	p.wg.Wait()
	p.cancel()
	if err := p.Err(); err != nil {
		return err
	}
	return p.parent.Err()
}

// Stop initiates termination of all workers and waits for them to exit.
// Running handlers are not interrupted.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// RunJobs runs handler for every job in set. With workers == 0 the jobs run
// inline in set order; otherwise a pool of that many workers consumes them.
// No job is started after the first failure, whose error is returned.
func RunJobs(ctx context.Context, set JobSet, workers int, handler JobHandler) error {
	jobs := set.jobs
	if workers <= 0 {
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handler(ctx, job); err != nil {
				return err
			}
		}
		return nil
	}

	if len(jobs) == 0 {
		return ctx.Err()
	}

	ch := make(JobChannel, len(jobs))
	for _, job := range jobs {
		ch <- job
	}
	close(ch)

	pool := NewWorkerPool(ctx, ch, handler)
	pool.SetWorkerCount(min(workers, len(jobs)))
	return pool.Wait()
}
