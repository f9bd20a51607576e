package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/rover/internal/application/graph"
	"github.com/aescanero/rover/pkg/adapters/codec/jsonapi"
	eventsmemory "github.com/aescanero/rover/pkg/adapters/events/memory"
	promadapter "github.com/aescanero/rover/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/rover/pkg/adapters/storage/memory"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const echoBody = `{
	"data": {"type": "events", "id": "srv-1", "attributes": {"object": "app", "action": "open", "timestamp": "2024-03-01T12:00:00Z", "place": "server"}},
	"included": [{"type": "geofence-regions", "id": "g1", "attributes": {"latitude": 1, "longitude": 2, "radius": 100}}]
}`

type transportFunc func(ctx context.Context, req ports.Request) (domain.Envelope, error)

func (f transportFunc) Send(ctx context.Context, req ports.Request) (domain.Envelope, error) {
	return f(ctx, req)
}

func respond(body string) transportFunc {
	return func(context.Context, ports.Request) (domain.Envelope, error) {
		return domain.NewEnvelope([]byte(body)), nil
	}
}

type failingSerializer struct{}

func (failingSerializer) Serialize(interface{}) ([]byte, error) {
	return nil, &domain.SerializationError{Err: errors.New("boom")}
}

type probeFunc func(ctx context.Context) (bool, error)

func (f probeFunc) BluetoothEnabled(ctx context.Context) (bool, error) { return f(ctx) }

type recordingObserver struct {
	mu      sync.Mutex
	posted  []domain.Event
	regions [][]domain.Region
}

func (o *recordingObserver) OnEventPosted(event domain.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.posted = append(o.posted, event)
}

func (o *recordingObserver) OnRegionsReceived(regions []domain.Region) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.regions = append(o.regions, regions)
}

func (o *recordingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.posted), len(o.regions)
}

type fixture struct {
	deps     Deps
	observer *recordingObserver
	storage  *storagememory.InMemoryStateStorage
}

func newFixture(t *testing.T, transport ports.Transport) *fixture {
	t.Helper()
	codec := jsonapi.New()
	observer := &recordingObserver{}
	storage := storagememory.NewInMemoryStateStorage()
	bus := eventsmemory.NewInMemoryEventBus(zap.NewNop())
	t.Cleanup(func() { bus.Close() })

	return &fixture{
		observer: observer,
		storage:  storage,
		deps: Deps{
			Serializer: codec,
			Mapper:     codec,
			Transport:  transport,
			Devices:    storagememory.NewInMemoryDeviceStore(),
			Storage:    storage,
			Bus:        bus,
			Metrics:    promadapter.NewCollector(prometheus.NewRegistry()),
			Observer:   observer,
			Logger:     zap.NewNop(),
		},
	}
}

func waitDone(t *testing.T, inst *Instance) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, inst.Wait(ctx))
}

func nodeState(t *testing.T, inst *Instance, id string) graph.State {
	t.Helper()
	s, ok := inst.NodeState(id)
	require.True(t, ok)
	return s
}

func TestNewValidates(t *testing.T) {
	_, err := New(domain.NewApplicationOpen(time.Now()), Deps{})
	assert.Error(t, err)

	f := newFixture(t, respond(echoBody))
	_, err = New(domain.Event{Kind: "unknown"}, f.deps)
	assert.Error(t, err)
}

func TestInstanceSuspendedUntilStart(t *testing.T) {
	var calls int
	var mu sync.Mutex
	f := newFixture(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.PipelineStatusPending, inst.Status())
	assert.False(t, inst.Started())
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()

	stored, err := f.storage.GetState(context.Background(), inst.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusPending, stored.Status)
}

func TestInstanceDeliversEvent(t *testing.T) {
	var gotReq ports.Request
	f := newFixture(t, transportFunc(func(_ context.Context, req ports.Request) (domain.Envelope, error) {
		gotReq = req
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	event := domain.NewApplicationOpen(time.Now())
	event.Properties = map[string]interface{}{"place": "client", "session": "s1"}
	inst, err := New(event, f.deps)
	require.NoError(t, err)

	finished := make(chan domain.PipelineStatus, 1)
	inst.OnFinish(func(i *Instance) { finished <- i.Status() })
	inst.Start()
	waitDone(t, inst)

	assert.Equal(t, EventsPath, gotReq.Path)
	assert.NotEmpty(t, gotReq.Body)
	assert.Equal(t, domain.PipelineStatusFinished, <-finished)
	assert.True(t, inst.Delivered())

	for _, id := range []string{NodePrerequisite, NodeSerialize, NodeTransmit, NodeRouteRegions, NodeRouteEvent, NodeFinish} {
		assert.Equal(t, graph.StateCompleted, nodeState(t, inst, id), id)
	}

	f.observer.mu.Lock()
	require.Len(t, f.observer.posted, 1)
	posted := f.observer.posted[0]
	require.Len(t, f.observer.regions, 1)
	assert.Equal(t, "g1", f.observer.regions[0][0].ID)
	f.observer.mu.Unlock()

	assert.Equal(t, "srv-1", posted.ID)
	assert.Equal(t, "server", posted.Properties["place"])
	assert.Equal(t, "s1", posted.Properties["session"])

	stored, err := f.storage.GetState(context.Background(), inst.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusFinished, stored.Status)
	assert.True(t, stored.Delivered)
	assert.NotNil(t, stored.FinishedAt)
	assert.Equal(t, string(graph.StateCompleted), stored.NodeStates[NodeFinish].Status)
}

func TestTransportErrorSkipsRouters(t *testing.T) {
	f := newFixture(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		return domain.Envelope{}, &domain.TransportError{StatusCode: 500, Err: errors.New("server error")}
	}))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	assert.Equal(t, graph.StateFailed, nodeState(t, inst, NodeTransmit))
	var terr *domain.TransportError
	assert.True(t, errors.As(inst.NodeErr(NodeTransmit), &terr))

	assert.True(t, nodeState(t, inst, NodeRouteRegions).IsTerminal())
	assert.True(t, nodeState(t, inst, NodeRouteEvent).IsTerminal())
	assert.Equal(t, graph.StateCompleted, nodeState(t, inst, NodeFinish))

	posted, regions := f.observer.counts()
	assert.Zero(t, posted)
	assert.Zero(t, regions)
	assert.Equal(t, domain.PipelineStatusFinished, inst.Status())
	assert.False(t, inst.Delivered())
}

func TestSerializationFailureCancelsTransmit(t *testing.T) {
	f := newFixture(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		t.Error("transport must not be called")
		return domain.Envelope{}, nil
	}))
	f.deps.Serializer = failingSerializer{}

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	assert.Equal(t, graph.StateFailed, nodeState(t, inst, NodeSerialize))
	assert.Equal(t, graph.StateCancelled, nodeState(t, inst, NodeTransmit))
	assert.ErrorIs(t, inst.NodeErr(NodeTransmit), graph.ErrRequirementUnmet)
	assert.Equal(t, graph.StateCompleted, nodeState(t, inst, NodeFinish))
	assert.False(t, inst.Delivered())
}

func TestEmptyIncludedSkipsRegions(t *testing.T) {
	f := newFixture(t, respond(`{"data": {"type": "events", "id": "e", "attributes": {"object": "app", "action": "open"}}, "included": []}`))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	posted, regions := f.observer.counts()
	assert.Equal(t, 1, posted)
	assert.Zero(t, regions)
	assert.Equal(t, graph.StateCompleted, nodeState(t, inst, NodeRouteRegions))
}

func TestMissingPrimaryFailsRouteEvent(t *testing.T) {
	f := newFixture(t, respond(``))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	assert.Equal(t, graph.StateFailed, nodeState(t, inst, NodeRouteEvent))
	var merr *domain.MappingError
	assert.True(t, errors.As(inst.NodeErr(NodeRouteEvent), &merr))
	assert.Equal(t, domain.PipelineStatusFinished, inst.Status())
}

func TestPrerequisiteFailureIsAdvisory(t *testing.T) {
	f := newFixture(t, respond(echoBody))
	f.deps.Probe = probeFunc(func(context.Context) (bool, error) {
		return false, errors.New("no adapter")
	})

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	assert.Equal(t, graph.StateFailed, nodeState(t, inst, NodePrerequisite))
	assert.Equal(t, graph.StateCompleted, nodeState(t, inst, NodeSerialize))
	assert.True(t, inst.Delivered())
}

func TestPrerequisitePersistsDeviceStatus(t *testing.T) {
	f := newFixture(t, respond(echoBody))
	f.deps.Probe = probeFunc(func(context.Context) (bool, error) { return true, nil })

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	status, err := f.deps.Devices.LoadStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.BluetoothOn)
}

func TestCancelDuringTransmit(t *testing.T) {
	entered := make(chan struct{})
	f := newFixture(t, transportFunc(func(ctx context.Context, _ ports.Request) (domain.Envelope, error) {
		close(entered)
		<-ctx.Done()
		return domain.Envelope{}, &domain.TransportError{Err: ctx.Err()}
	}))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)

	var finishes int
	var mu sync.Mutex
	inst.OnFinish(func(*Instance) {
		mu.Lock()
		finishes++
		mu.Unlock()
	})
	inst.Start()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("transmit never started")
	}
	inst.Cancel()
	waitDone(t, inst)

	assert.Equal(t, graph.StateCancelled, nodeState(t, inst, NodeTransmit))
	assert.Equal(t, graph.StateCancelled, nodeState(t, inst, NodeRouteRegions))
	assert.Equal(t, graph.StateCancelled, nodeState(t, inst, NodeRouteEvent))
	assert.Equal(t, graph.StateCompleted, nodeState(t, inst, NodeFinish))
	assert.Equal(t, domain.PipelineStatusCancelled, inst.Status())

	posted, regions := f.observer.counts()
	assert.Zero(t, posted)
	assert.Zero(t, regions)

	mu.Lock()
	assert.Equal(t, 1, finishes)
	mu.Unlock()
}

func TestCancelBeforeStartRunsFinish(t *testing.T) {
	f := newFixture(t, respond(echoBody))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)

	inst.Cancel()
	waitDone(t, inst)

	assert.Equal(t, graph.StateCancelled, nodeState(t, inst, NodeSerialize))
	assert.Equal(t, graph.StateCompleted, nodeState(t, inst, NodeFinish))
	assert.Equal(t, domain.PipelineStatusCancelled, inst.Status())

	inst.Start()
	assert.False(t, inst.Started())
}

func TestCancelAfterFinishIsNoop(t *testing.T) {
	f := newFixture(t, respond(echoBody))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	inst.Cancel()
	inst.Cancel()
	assert.Equal(t, domain.PipelineStatusFinished, inst.Status())
	assert.True(t, inst.Delivered())
}

func TestOnFinishAfterCompletionRunsImmediately(t *testing.T) {
	f := newFixture(t, respond(echoBody))

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	called := false
	inst.OnFinish(func(*Instance) { called = true })
	assert.True(t, called)
}

func TestMergeEcho(t *testing.T) {
	loc := &domain.Location{Latitude: 1}
	submitted := domain.Event{
		ID:         "local",
		Kind:       domain.EventKindLocationUpdate,
		Timestamp:  time.Unix(100, 0),
		Location:   loc,
		Properties: map[string]interface{}{"a": 1, "b": 2},
	}
	echoed := domain.Event{
		Kind:       domain.EventKindLocationUpdate,
		Properties: map[string]interface{}{"b": 3},
	}

	merged := mergeEcho(submitted, echoed)
	assert.Equal(t, "local", merged.ID)
	assert.Equal(t, submitted.Timestamp, merged.Timestamp)
	assert.Same(t, loc, merged.Location)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3}, merged.Properties)
}

type slowEventMapper struct {
	ports.Mapper
	delay time.Duration
}

func (m slowEventMapper) Map(raw json.RawMessage, target interface{}) error {
	if _, ok := target.(*domain.Event); ok {
		time.Sleep(m.delay)
	}
	return m.Mapper.Map(raw, target)
}

// slowRouterStorage delays the save taken while route-regions is done and
// route-event is still running
type slowRouterStorage struct {
	*storagememory.InMemoryStateStorage
	delay time.Duration
}

func (s slowRouterStorage) SaveState(ctx context.Context, state *domain.PipelineState) error {
	regions := state.NodeStates[NodeRouteRegions]
	event := state.NodeStates[NodeRouteEvent]
	if regions.Status == string(graph.StateCompleted) && event.Status == string(graph.StateRunning) {
		time.Sleep(s.delay)
	}
	return s.InMemoryStateStorage.SaveState(ctx, state)
}

func TestFinalSnapshotIsLastWrite(t *testing.T) {
	f := newFixture(t, respond(echoBody))
	f.deps.Mapper = slowEventMapper{Mapper: f.deps.Mapper, delay: 30 * time.Millisecond}
	f.deps.Storage = slowRouterStorage{InMemoryStateStorage: f.storage, delay: 150 * time.Millisecond}

	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)
	inst.Start()
	waitDone(t, inst)

	stored, err := f.storage.GetState(context.Background(), inst.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusFinished, stored.Status)
	assert.Equal(t, string(graph.StateCompleted), stored.NodeStates[NodeFinish].Status)
	assert.True(t, stored.Delivered)
}

func TestLateStartHookKeepsCancelledNode(t *testing.T) {
	f := newFixture(t, respond(echoBody))
	inst, err := New(domain.NewApplicationOpen(time.Now()), f.deps)
	require.NoError(t, err)

	now := time.Now()
	inst.nodeFinished(graph.NodeEvent{
		NodeID:      NodeRouteEvent,
		State:       graph.StateCancelled,
		Err:         graph.ErrCancelled,
		CompletedAt: now,
	})
	inst.nodeStarted(graph.NodeEvent{
		NodeID:    NodeRouteEvent,
		State:     graph.StateRunning,
		StartedAt: now,
	})

	snap := inst.Snapshot()
	assert.Equal(t, string(graph.StateCancelled), snap.NodeStates[NodeRouteEvent].Status)
	assert.Nil(t, snap.NodeStates[NodeRouteEvent].StartedAt)
	assert.Equal(t, domain.PipelineStatusPending, snap.Status)
}
