package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/rover/internal/application/scheduler"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

var (
	// ErrNoApplicationToken is returned when the manager is created without
	// an application token
	ErrNoApplicationToken = errors.New("application token is not configured")

	// ErrPipelineNotFound is returned for unknown or already released pipelines
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// Config holds manager configuration
type Config struct {
	ApplicationToken string
}

// Deps are the collaborators of the manager. Scheduler, Serializer, Mapper
// and Transport are required.
type Deps struct {
	Scheduler  *scheduler.Scheduler
	Serializer ports.Serializer
	Mapper     ports.Mapper
	Transport  ports.Transport
	Storage    ports.StateStorage
	Devices    ports.DeviceStore
	Monitor    ports.RegionMonitor
	Logger     *zap.Logger
}

// Manager is the entry point for tracking events and backend requests
type Manager struct {
	scheduler  *scheduler.Scheduler
	serializer ports.Serializer
	mapper     ports.Mapper
	transport  ports.Transport
	storage    ports.StateStorage
	devices    ports.DeviceStore
	monitor    ports.RegionMonitor
	validator  *Validator
	logger     *zap.Logger

	mu        sync.RWMutex
	observers []registration

	inboxMu  sync.Mutex
	messages map[string]domain.Message
	screens  map[string]domain.Screen

	// serializes push token compare-and-set
	tokenMu sync.Mutex
}

// NewManager creates a new manager and registers it as the observer of every
// pipeline the scheduler builds
func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if cfg.ApplicationToken == "" {
		return nil, ErrNoApplicationToken
	}
	if deps.Scheduler == nil || deps.Serializer == nil || deps.Mapper == nil || deps.Transport == nil {
		return nil, fmt.Errorf("scheduler, serializer, mapper and transport are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	m := &Manager{
		scheduler:  deps.Scheduler,
		serializer: deps.Serializer,
		mapper:     deps.Mapper,
		transport:  deps.Transport,
		storage:    deps.Storage,
		devices:    deps.Devices,
		monitor:    deps.Monitor,
		validator:  NewValidator(),
		logger:     deps.Logger,
		messages:   make(map[string]domain.Message),
		screens:    make(map[string]domain.Screen),
	}
	deps.Scheduler.SetObserver(m)
	return m, nil
}

// Start tracks the application open
func (m *Manager) Start() (string, error) {
	m.logger.Info("orchestrator manager started")
	return m.SendEvent(domain.NewApplicationOpen(time.Now()))
}

// SendEvent validates event and submits it to the ordered lane. It returns
// the pipeline id.
func (m *Manager) SendEvent(event domain.Event) (string, error) {
	if err := m.validator.Validate(event); err != nil {
		m.logger.Warn("event validation failed",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
		return "", fmt.Errorf("validation failed: %w", err)
	}

	inst, err := m.scheduler.Submit(event)
	if err != nil {
		return "", err
	}

	m.logger.Info("event submitted",
		zap.String("pipeline_id", inst.ID()),
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)))

	return inst.ID(), nil
}

// GetStatus returns the snapshot of a pipeline, live or stored
func (m *Manager) GetStatus(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	if inst, ok := m.scheduler.Get(pipelineID); ok {
		return inst.Snapshot(), nil
	}
	if m.storage == nil {
		return nil, ErrPipelineNotFound
	}

	state, err := m.storage.GetState(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrPipelineNotFound
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return state, nil
}

// ListPipelines returns stored snapshots
func (m *Manager) ListPipelines(ctx context.Context) ([]*domain.PipelineState, error) {
	if m.storage == nil {
		return nil, nil
	}
	states, err := m.storage.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	return states, nil
}

// CancelPipeline cancels a queued or running pipeline
func (m *Manager) CancelPipeline(pipelineID string) error {
	if !m.scheduler.Cancel(pipelineID) {
		return ErrPipelineNotFound
	}
	m.logger.Info("pipeline cancelled", zap.String("pipeline_id", pipelineID))
	return nil
}

// QueueDepth returns the number of pipelines on the ordered lane
func (m *Manager) QueueDepth() int {
	return m.scheduler.QueueDepth()
}

// runIndependent runs fn on the unordered lane and waits for it. fn's
// context ends when either ctx or the lane is cancelled.
func (m *Manager) runIndependent(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	err := m.scheduler.SubmitIndependent(name, func(laneCtx context.Context) error {
		taskCtx, cancel := context.WithCancel(laneCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		err := fn(taskCtx)
		done <- err
		return err
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown drains the ordered lane
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	if err := m.scheduler.Shutdown(ctx); err != nil {
		return err
	}

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}
