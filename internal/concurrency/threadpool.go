// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadPool runs queued tasks on a fixed set of long-lived workers.
// The queue is a bounded FIFO guarded by one mutex; a counting semaphore
// mirrors its length so idle workers block instead of spinning.

package concurrency

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-catrate"
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
)

// ThreadPool is a bounded worker pool. Each task is processed to completion
// by exactly one worker; tasks start in submission order.
type ThreadPool struct {
	workers   int
	maxQueued int

	mu    sync.Mutex   // guards queue, never held across Process
	queue *queue.Queue // FIFO of api.Task
	sem   *Semaphore

	stopped atomic.Bool
	wg      sync.WaitGroup

	warnLimit *catrate.Limiter
	pin       bool

	// statistics
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
}

// PoolOption configures a ThreadPool.
type PoolOption func(*ThreadPool)

// WithCPUAffinity pins worker i to logical CPU i modulo the CPU count.
func WithCPUAffinity(enabled bool) PoolOption {
	return func(p *ThreadPool) { p.pin = enabled }
}

// NewThreadPool starts workers goroutines serving a queue of at most maxQueued tasks.
// Both values must be positive.
func NewThreadPool(workers, maxQueued int, opts ...PoolOption) (*ThreadPool, error) {
	if workers <= 0 || maxQueued <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument,
			"thread pool: workers and max queued tasks must be positive").
			WithContext("workers", workers).
			WithContext("max_queued", maxQueued).
			Wrap(api.ErrInvalidArgument)
	}
	p := &ThreadPool{
		workers:   workers,
		maxQueued: maxQueued,
		queue:     queue.New(),
		sem:       NewSemaphore(0),
		warnLimit: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 30,
		}),
	}
	for _, o := range opts {
		o(p)
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
		logger.Debug("thread pool: started worker %d", i)
	}
	return p, nil
}

// MustNewThreadPool is NewThreadPool that panics on invalid configuration.
func MustNewThreadPool(workers, maxQueued int, opts ...PoolOption) *ThreadPool {
	p, err := NewThreadPool(workers, maxQueued, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Submit appends task to the queue tail and wakes one worker. It never blocks:
// a nil task, a full queue or a shut down pool fail immediately.
func (p *ThreadPool) Submit(task api.Task) error {
	if task == nil {
		logger.Error("thread pool: submit of nil task")
		return api.ErrNilTask
	}
	if p.stopped.Load() {
		return api.ErrPoolClosed
	}
	p.mu.Lock()
	if p.queue.Length() >= p.maxQueued {
		p.mu.Unlock()
		p.rejected.Add(1)
		if _, ok := p.warnLimit.Allow("queue_full"); ok {
			logger.Warn("thread pool: task queue is full (%d queued), submission rejected", p.maxQueued)
		}
		return api.ErrQueueFull
	}
	p.queue.Add(task)
	p.mu.Unlock()
	p.submitted.Add(1)
	p.sem.Post()
	return nil
}

func (p *ThreadPool) run(id int) {
	defer p.wg.Done()
	if p.pin {
		cpu := WorkerCPU(id)
		if err := PinCurrentThread(cpu); err != nil {
			logger.Warn("thread pool: pin worker %d to cpu %d: %v", id, cpu, err)
		}
		defer UnpinCurrentThread()
	}
	for {
		p.sem.Wait()
		if p.stopped.Load() {
			return
		}
		p.mu.Lock()
		// a wakeup can race with Shutdown; the queue may be empty
		if p.queue.Length() == 0 {
			p.mu.Unlock()
			continue
		}
		task, _ := p.queue.Remove().(api.Task)
		p.mu.Unlock()
		if task != nil {
			p.execute(id, task)
		}
	}
}

// execute runs the task, recovering from panics to keep the worker alive.
func (p *ThreadPool) execute(id int, task api.Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("thread pool: worker %d recovered from task panic: %v", id, r)
		}
		p.completed.Add(1)
	}()
	task.Process()
}

// Shutdown sets the stop flag and wakes every worker once. Queued tasks are
// not drained; they are abandoned and reported. Tasks already running finish.
func (p *ThreadPool) Shutdown() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.sem.Post()
	}
	p.mu.Lock()
	pending := p.queue.Length()
	p.mu.Unlock()
	if pending > 0 {
		logger.Warn("thread pool: shut down with %d unprocessed tasks", pending)
	}
}

// Wait blocks until every worker goroutine has returned. Call after Shutdown.
func (p *ThreadPool) Wait() {
	p.wg.Wait()
}

// Len returns the number of queued tasks not yet picked up by a worker.
func (p *ThreadPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Length()
}

// Cap returns the maximum number of queued tasks.
func (p *ThreadPool) Cap() int { return p.maxQueued }

// Workers returns the fixed number of workers.
func (p *ThreadPool) Workers() int { return p.workers }

// Stats returns basic pool counters.
func (p *ThreadPool) Stats() map[string]int64 {
	return map[string]int64{
		"submitted_tasks": p.submitted.Load(),
		"completed_tasks": p.completed.Load(),
		"rejected_tasks":  p.rejected.Load(),
		"queued_tasks":    int64(p.Len()),
		"num_workers":     int64(p.workers),
	}
}

func (p *ThreadPool) String() string {
	return fmt.Sprintf("ThreadPool(workers=%d, queued=%d/%d)", p.workers, p.Len(), p.maxQueued)
}

var _ api.Executor = (*ThreadPool)(nil)
