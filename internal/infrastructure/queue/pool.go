package queue

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

const channelBuffer = 256

// ErrPoolStopped is returned by Do once the pool is no longer accepting work.
var ErrPoolStopped = errors.New("worker pool stopped")

type job struct {
	fn   func()
	done chan struct{}
}

// Pool runs CPU-bound jobs on a fixed set of workers so that a burst of
// requests cannot schedule more concurrent work than there are cores.
type Pool struct {
	jobs    chan job
	workers int
	log     zerolog.Logger

	// OnQueueDepth, when set, is called with the number of pending jobs
	// every time one is enqueued or picked up.
	OnQueueDepth func(depth int)

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a Pool with numWorkers workers.
// If numWorkers <= 0, runtime.NumCPU() is used.
func NewPool(numWorkers int, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Pool{
		jobs:    make(chan job, channelBuffer),
		workers: numWorkers,
		log:     log,
		stopped: make(chan struct{}),
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
	go func() {
		select {
		case <-ctx.Done():
			p.stopOnce.Do(func() { close(p.stopped) })
		case <-p.stopped:
		}
	}()
	p.log.Debug().Int("workers", p.workers).Msg("worker pool started")
}

// Stop stops accepting jobs and waits for workers to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.wg.Wait()
}

// Do runs fn on a worker and blocks until it returns. If ctx is done before
// the job is queued, Do returns ctx.Err() and fn never runs.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j := job{fn: fn, done: make(chan struct{})}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		return ErrPoolStopped
	case p.jobs <- j:
		p.reportDepth()
	}

	select {
	case <-j.done:
		return nil
	case <-p.stopped:
		// A worker may still finish the job; the caller no longer waits for it.
		return ErrPoolStopped
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case j := <-p.jobs:
			p.reportDepth()
			p.run(id, j)
		}
	}
}

func (p *Pool) run(id int, j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int("worker_id", id).Msg("job panicked")
		}
	}()
	j.fn()
}

func (p *Pool) reportDepth() {
	if p.OnQueueDepth != nil {
		p.OnQueueDepth(len(p.jobs))
	}
}
