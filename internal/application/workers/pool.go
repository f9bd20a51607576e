package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

// ErrPoolStopped is returned when work is submitted after shutdown
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a unit of independent work
type Task func(ctx context.Context) error

// Pool manages a pool of worker goroutines
type Pool struct {
	name    string
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	started bool
	stopped bool
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	name string,
	size int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		name:    name,
		size:    size,
		metrics: metrics,
		logger:  logger.With(zap.String("pool", name)),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}
	pool.cond = sync.NewCond(&pool.mu)
	pool.health = NewHealthMonitor(pool, healthCheckInterval, pool.logger)

	return pool
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("worker pool %s already started", p.name)
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("%s-worker-%d", p.name, i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run()
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues fn for execution. It never blocks on running work, so it is
// safe to call from inside a worker. Work submitted after shutdown is dropped.
func (p *Pool) Submit(fn func()) {
	if err := p.enqueue(fn); err != nil {
		p.logger.Warn("dropping work submitted to stopped pool")
	}
}

// SubmitTask queues an independent task. The task receives the pool context,
// which is cancelled on shutdown.
func (p *Pool) SubmitTask(name string, task Task) error {
	return p.enqueue(func() {
		start := time.Now()
		err := task(p.ctx)
		status := "completed"
		if err != nil {
			status = "failed"
			p.logger.Warn("task failed",
				zap.String("task", name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
		} else {
			p.logger.Debug("task completed",
				zap.String("task", name),
				zap.Duration("duration", time.Since(start)))
		}
		if p.metrics != nil {
			p.metrics.RecordUnorderedTask(status)
		}
	})
}

// QueueLen returns the number of queued, not yet running, functions
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown stops accepting work, lets workers drain the queue and waits for
// them, or returns when ctx ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()

	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

func (p *Pool) enqueue(fn func()) error {
	if fn == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	return nil
}

// next blocks until work is queued. It returns false once the pool is
// stopped and the queue is drained.
func (p *Pool) next() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.stopped {
			return nil, false
		}
		p.cond.Wait()
	}
	fn := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return fn, true
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		fn, ok := w.pool.next()
		if !ok {
			break
		}
		w.execute(fn)
	}

	w.setStatus(WorkerStatusStopped)
	w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
}

func (w *worker) execute(fn func()) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("recovered panic in worker",
				zap.String("worker_id", w.id),
				zap.Any("panic", r))
		}
		w.setStatus(WorkerStatusIdle)
	}()

	fn()
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
