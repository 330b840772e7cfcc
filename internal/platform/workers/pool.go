// Package workers runs fire-and-forget background tasks on a fixed number of goroutines.
package workers

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of background work. Errors are logged and the task is dropped.
type Task func(ctx context.Context) error

// Pool is a fixed-size worker pool with an unbounded submission queue, so
// Submit never blocks the caller on the workers.
type Pool struct {
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	cond    *sync.Cond
	idle    *sync.Cond
	queue   []namedTask
	closed  bool
	pending int // queued or running, guarded by mu
	workers sync.WaitGroup
}

type namedTask struct {
	name string
	run  Task
}

// NewPool starts size workers. A non-positive size starts one.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{logger: logger, ctx: ctx, cancel: cancel}
	p.cond = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p
}

// Submit queues a task. It returns false if the pool is closed.
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Warn("Dropping task submitted to closed pool", slog.String("task", name))
		return false
	}
	p.pending++
	p.queue = append(p.queue, namedTask{name: name, run: task})
	p.cond.Signal()
	return true
}

// Wait blocks until the pool is idle: every task submitted before the call,
// and every task those tasks submitted, has finished. A task submitted from
// outside the pool while Wait is blocked may or may not be waited for.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

// Close stops accepting tasks, drains the queue and stops the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.workers.Wait()
	p.cancel()
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = namedTask{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(t)
	}
}

func (p *Pool) run(t namedTask) {
	defer p.done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Background task panicked", slog.String("task", t.name), slog.Any("panic", r))
		}
	}()
	if err := t.run(p.ctx); err != nil {
		p.logger.Error("Background task failed", slog.String("task", t.name), slog.String("error", err.Error()))
	}
}

func (p *Pool) done() {
	p.mu.Lock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}
