/*
Package workpool provides a bounded worker pool with caller-runs backpressure.

Tasks are queued to a fixed set of workers. When the queue is full, or the pool has
been shut down, Submit executes the task on the calling goroutine instead of
dropping it, so no submitted task is ever lost.
*/
package workpool

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"chatcoord/internal/pkg/logx"
)

// Hooks receives pool events. Any field may be nil.
type Hooks struct {
	// CallerRuns is called each time a task runs on the submitting goroutine.
	CallerRuns func()

	// Panic is called each time a task panics.
	Panic func()
}

// Pool is a fixed-size worker pool.
type Pool struct {
	tasks chan func()

	// mu guards closed and serializes channel close against in-flight sends.
	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	hooks  Hooks
	logger zerolog.Logger
}

// New starts workers goroutines consuming a queue of queueSize tasks.
func New(workers, queueSize int, hooks Hooks) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		tasks:  make(chan func(), queueSize),
		hooks:  hooks,
		logger: logx.Component("WorkPool"),
	}

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}

	p.logger.Info().Int("workers", workers).Int("queue_size", queueSize).Msg("Worker pool started.")

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(task)
	}
}

// run executes task and recovers any panic so one bad task never takes down a worker.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Err(fmt.Errorf("%v", r)).Msg("Recovered from panic in pooled task.")
			if p.hooks.Panic != nil {
				p.hooks.Panic()
			}
		}
	}()

	task()
}

// Submit queues task, or runs it synchronously when the queue is saturated or the pool is closed.
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}

	p.mu.RLock()
	if !p.closed {
		select {
		case p.tasks <- task:
			p.mu.RUnlock()
			return
		default:
		}
	}
	p.mu.RUnlock()

	if p.hooks.CallerRuns != nil {
		p.hooks.CallerRuns()
	}
	p.run(task)
}

// Shutdown stops accepting queued work, drains already queued tasks and waits for workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped.")
}
