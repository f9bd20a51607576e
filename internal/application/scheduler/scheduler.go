package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aescanero/rover/internal/application/pipeline"
	"github.com/aescanero/rover/internal/application/workers"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

// ErrClosed is returned when work is submitted after Shutdown
var ErrClosed = errors.New("scheduler closed")

const orderedLane = "ordered"

// Scheduler owns every pipeline instance from submission until its finish
// node is terminal
type Scheduler struct {
	deps      pipeline.Deps
	unordered *workers.Pool
	metrics   ports.MetricsCollector
	logger    *zap.Logger

	mu        sync.Mutex
	queue     []*pipeline.Instance
	running   *pipeline.Instance
	instances map[string]*pipeline.Instance
	closed    bool
}

// New creates a scheduler. deps is the template every instance is built
// from; its Dispatcher runs pipeline nodes. unordered runs independent tasks.
func New(deps pipeline.Deps, unordered *workers.Pool, metrics ports.MetricsCollector, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics
	}
	return &Scheduler{
		deps:      deps,
		unordered: unordered,
		metrics:   metrics,
		logger:    logger,
		instances: make(map[string]*pipeline.Instance),
	}
}

// SetObserver sets the observer of instances submitted from now on
func (s *Scheduler) SetObserver(observer pipeline.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Observer = observer
}

// Submit builds an instance for event and appends it to the ordered lane.
// The instance starts immediately when the lane is idle.
func (s *Scheduler) Submit(event domain.Event) (*pipeline.Instance, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	deps := s.deps
	s.mu.Unlock()

	inst, err := pipeline.New(event, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	inst.OnFinish(s.release)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		inst.Cancel()
		return nil, ErrClosed
	}
	s.queue = append(s.queue, inst)
	s.instances[inst.ID()] = inst
	var start *pipeline.Instance
	if s.running == nil {
		s.running = inst
		start = inst
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.logger.Debug("pipeline queued",
		zap.String("pipeline_id", inst.ID()),
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)))

	if start != nil {
		start.Start()
	}
	return inst, nil
}

// release removes a finished instance and starts the next queued one
func (s *Scheduler) release(inst *pipeline.Instance) {
	s.mu.Lock()
	for idx, q := range s.queue {
		if q == inst {
			s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
			break
		}
	}
	delete(s.instances, inst.ID())

	var next *pipeline.Instance
	if s.running == inst {
		s.running = nil
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.running = next
		}
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.logger.Debug("pipeline released",
		zap.String("pipeline_id", inst.ID()),
		zap.String("status", string(inst.Status())))

	if next != nil {
		// a cancelled instance ignores Start and releases the lane itself
		next.Start()
	}
}

func (s *Scheduler) updateGaugesLocked() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetQueueDepth(orderedLane, len(s.queue))
	s.metrics.SetActivePipelines(len(s.instances))
}

// SubmitIndependent dispatches task to the unordered lane
func (s *Scheduler) SubmitIndependent(name string, task workers.Task) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := s.unordered.SubmitTask(name, task); err != nil {
		return fmt.Errorf("failed to submit %s: %w", name, err)
	}
	return nil
}

// Get returns a live instance
func (s *Scheduler) Get(id string) (*pipeline.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	return inst, ok
}

// Cancel cancels a live instance. It reports false when the instance is
// unknown or already released.
func (s *Scheduler) Cancel(id string) bool {
	inst, ok := s.Get(id)
	if !ok {
		return false
	}
	inst.Cancel()
	return true
}

// QueueDepth returns the number of instances on the ordered lane, including
// the running one
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Running returns the id of the instance currently owning the ordered lane
func (s *Scheduler) Running() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		return "", false
	}
	return s.running.ID(), true
}

// Shutdown stops accepting work and waits for the ordered lane to drain.
// When ctx ends first the remaining instances are cancelled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := append([]*pipeline.Instance(nil), s.queue...)
	s.mu.Unlock()

	s.logger.Info("draining ordered lane", zap.Int("pending", len(pending)))

	for _, inst := range pending {
		if err := inst.Wait(ctx); err != nil {
			s.cancelAll()
			return fmt.Errorf("shutdown timeout: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	pending := append([]*pipeline.Instance(nil), s.queue...)
	s.mu.Unlock()

	for _, inst := range pending {
		inst.Cancel()
	}
	s.logger.Warn("cancelled pipelines on shutdown", zap.Int("count", len(pending)))
}
