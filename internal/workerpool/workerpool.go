// Package workerpool implements a bounded FIFO task executor with graceful
// drain, grounded on the fetcher's ThreadPool and adapted from the
// ingest package's fifo.Queue usage in this repository's teacher.
package workerpool

import (
	"sync"

	fifo "github.com/foize/go.fifo"
)

// Task is a unit of work submitted to the pool. Panics inside a task are
// recovered and logged by the caller-supplied onPanic hook; they never
// bring down a worker goroutine.
type Task func()

// Pool runs up to W workers pulling tasks off a shared FIFO queue.
type Pool struct {
	queue *fifo.Queue

	mu   sync.Mutex
	cond *sync.Cond

	wg       sync.WaitGroup
	running  bool
	stopping bool

	onPanic func(recovered any)
}

// New starts a pool with the given worker count. onPanic, if non-nil, is
// called (off the failing worker's stack) whenever a task panics.
func New(workers int, onPanic func(recovered any)) *Pool {
	p := &Pool{
		queue:   fifo.NewQueue(),
		running: true,
		onPanic: onPanic,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

// Enqueue adds a task to the queue. It is silently dropped if the pool is
// shutting down.
func (p *Pool) Enqueue(t Task) {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.queue.Add(t)
	p.mu.Lock()
	p.cond.Signal()
	p.mu.Unlock()
}

// Pending returns the number of tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	return p.queue.Len()
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		item := p.next()
		if item == nil {
			return
		}
		p.runTask(item.(Task))
	}
}

// next blocks until a task is available or the pool is stopping with an
// empty queue, in which case it returns nil to end the worker.
func (p *Pool) next() interface{} {
	for {
		if v := p.queue.Next(); v != nil {
			return v
		}
		p.mu.Lock()
		// Re-check under the lock: a task added after Next() returned nil
		// signals only once this worker waits, so waiting here would miss it.
		if p.queue.Len() > 0 {
			p.mu.Unlock()
			continue
		}
		if p.stopping {
			p.mu.Unlock()
			return nil
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

func (p *Pool) runTask(t Task) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	t()
}

// Shutdown stops accepting new tasks, wakes all workers, drains whatever is
// already queued, and waits for every worker to return.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.stopping = true
	p.running = false
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// IsRunning reports whether the pool is still accepting tasks.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
