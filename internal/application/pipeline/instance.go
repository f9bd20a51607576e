package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/rover/internal/application/graph"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Node ids of the submission graph
const (
	NodePrerequisite = "prerequisite"
	NodeSerialize    = "serialize"
	NodeTransmit     = "transmit"
	NodeRouteRegions = "route-regions"
	NodeRouteEvent   = "route-event"
	NodeFinish       = "finish"
)

// EventsPath is the backend resource events are posted to
const EventsPath = "events"

const persistTimeout = 5 * time.Second

// Observer receives the results of a delivered event. Calls are made from
// worker goroutines.
type Observer interface {
	OnEventPosted(event domain.Event)
	OnRegionsReceived(regions []domain.Region)
}

// Deps are the collaborators of an instance. Serializer, Mapper and
// Transport are required; the rest are optional.
type Deps struct {
	Serializer ports.Serializer
	Mapper     ports.Mapper
	Transport  ports.Transport

	Probe    ports.CapabilityProbe
	Devices  ports.DeviceStore
	Storage  ports.StateStorage
	Bus      ports.EventBus
	Metrics  ports.MetricsCollector
	Observer Observer

	Dispatcher graph.Dispatcher
	Logger     *zap.Logger
}

func (d Deps) validate() error {
	if d.Serializer == nil {
		return fmt.Errorf("serializer is required")
	}
	if d.Mapper == nil {
		return fmt.Errorf("mapper is required")
	}
	if d.Transport == nil {
		return fmt.Errorf("transport is required")
	}
	return nil
}

// Instance is one event travelling through the submission graph
type Instance struct {
	id     string
	event  domain.Event
	deps   Deps
	exec   *graph.Executor
	logger *zap.Logger

	mu              sync.Mutex
	state           *domain.PipelineState
	cancelRequested bool
	finished        bool
	onFinish        []func(*Instance)
	done            chan struct{}

	// orders snapshot saves and lifecycle publishes across node hooks
	recordMu sync.Mutex
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// New builds a suspended instance for event and records its submission
func New(event domain.Event, deps Deps) (*Instance, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if !event.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind: %q", event.Kind)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	id := newID()
	inst := &Instance{
		id:     id,
		event:  event,
		deps:   deps,
		logger: deps.Logger.With(zap.String("pipeline_id", id), zap.String("event_id", event.ID)),
		done:   make(chan struct{}),
		state:  newState(id, event),
	}

	exec, err := graph.Build(inst.nodes(), edges,
		graph.WithID(id),
		graph.WithDispatcher(deps.Dispatcher),
		graph.WithLogger(deps.Logger),
		graph.WithHooks(graph.Hooks{
			OnStart:  inst.nodeStarted,
			OnFinish: inst.nodeFinished,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	inst.exec = exec

	if deps.Metrics != nil {
		deps.Metrics.RecordPipelineSubmitted(string(event.Kind))
	}
	inst.record(ports.EventTypePipelineSubmitted, "", nil)
	inst.logger.Debug("pipeline submitted", zap.String("kind", string(event.Kind)))

	return inst, nil
}

// ID returns the instance id
func (i *Instance) ID() string {
	return i.id
}

// Event returns the submitted event
func (i *Instance) Event() domain.Event {
	return i.event
}

// OnFinish registers fn to run after the finish node is terminal. Callbacks
// registered after that run immediately.
func (i *Instance) OnFinish(fn func(*Instance)) {
	i.mu.Lock()
	if !i.finished {
		i.onFinish = append(i.onFinish, fn)
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()
	fn(i)
}

// Start releases the suspend gate
func (i *Instance) Start() {
	i.exec.Start()
}

// Started reports whether Start was called
func (i *Instance) Started() bool {
	return i.exec.Started()
}

// Cancel cancels every unfinished node. Finish still runs. Cancelling a
// finished instance has no effect.
func (i *Instance) Cancel() {
	i.mu.Lock()
	if i.finished || i.cancelRequested {
		i.mu.Unlock()
		return
	}
	i.cancelRequested = true
	i.mu.Unlock()

	i.logger.Debug("pipeline cancel requested")
	i.exec.Cancel()
}

// Done is closed after the finish node is terminal and OnFinish callbacks ran
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until Done or ctx ends
func (i *Instance) Wait(ctx context.Context) error {
	select {
	case <-i.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the aggregate status
func (i *Instance) Status() domain.PipelineStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.Status
}

// Delivered reports whether the backend echo was mapped and observers were
// notified
func (i *Instance) Delivered() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.Delivered
}

// NodeState returns the graph state of a node
func (i *Instance) NodeState(id string) (graph.State, bool) {
	return i.exec.State(id)
}

// NodeErr returns the error a node ended with
func (i *Instance) NodeErr(id string) error {
	return i.exec.Err(id)
}

// Snapshot returns a copy of the current pipeline state
func (i *Instance) Snapshot() *domain.PipelineState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.Clone()
}
