package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/rover/internal/application/graph"
	"github.com/aescanero/rover/internal/application/pipeline"
	"github.com/aescanero/rover/internal/application/workers"
	"github.com/aescanero/rover/pkg/adapters/codec/jsonapi"
	promadapter "github.com/aescanero/rover/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const echoBody = `{"data": {"type": "events", "id": "srv", "attributes": {"object": "app", "action": "open"}}}`

type transportFunc func(ctx context.Context, req ports.Request) (domain.Envelope, error)

func (f transportFunc) Send(ctx context.Context, req ports.Request) (domain.Envelope, error) {
	return f(ctx, req)
}

func newTestScheduler(t *testing.T, transport ports.Transport) *Scheduler {
	t.Helper()
	metrics := promadapter.NewCollector(prometheus.NewRegistry())

	nodes := workers.NewPool("nodes", 4, metrics, zap.NewNop(), 0)
	require.NoError(t, nodes.Start())
	unordered := workers.NewPool("unordered", 2, metrics, zap.NewNop(), 0)
	require.NoError(t, unordered.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = unordered.Shutdown(ctx)
		_ = nodes.Shutdown(ctx)
	})

	codec := jsonapi.New()
	return New(pipeline.Deps{
		Serializer: codec,
		Mapper:     codec,
		Transport:  transport,
		Dispatcher: nodes,
	}, unordered, metrics, zap.NewNop())
}

func eventID(req ports.Request) string {
	return gjson.GetBytes(req.Body, "data.id").String()
}

func waitAll(t *testing.T, insts ...*pipeline.Instance) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, inst := range insts {
		require.NoError(t, inst.Wait(ctx))
	}
}

func TestOrderedLaneRunsInSubmissionOrder(t *testing.T) {
	var (
		mu       sync.Mutex
		order    []string
		inFlight atomic.Int32
		overlap  atomic.Bool
	)
	s := newTestScheduler(t, transportFunc(func(_ context.Context, req ports.Request) (domain.Envelope, error) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)
		mu.Lock()
		order = append(order, eventID(req))
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	var expected []string
	var insts []*pipeline.Instance
	for i := 0; i < 8; i++ {
		event := domain.NewApplicationOpen(time.Now())
		expected = append(expected, event.ID)
		inst, err := s.Submit(event)
		require.NoError(t, err)
		insts = append(insts, inst)
	}
	waitAll(t, insts...)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, expected, order)
	assert.False(t, overlap.Load())
	assert.Zero(t, s.QueueDepth())
}

func TestNextInstanceWaitsForFinish(t *testing.T) {
	release := make(chan struct{})
	first := make(chan struct{})
	var calls atomic.Int32
	s := newTestScheduler(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		if calls.Add(1) == 1 {
			close(first)
			<-release
		}
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	e1, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)
	<-first

	e2, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 2, s.QueueDepth())

	time.Sleep(20 * time.Millisecond)
	state, _ := e2.NodeState(pipeline.NodeSerialize)
	assert.Equal(t, graph.StatePending, state)
	assert.False(t, e2.Started())
	running, ok := s.Running()
	require.True(t, ok)
	assert.Equal(t, e1.ID(), running)

	close(release)
	waitAll(t, e1, e2)

	assert.Equal(t, domain.PipelineStatusFinished, e2.Status())
	assert.Equal(t, int32(2), calls.Load())
}

func TestCancelQueuedInstance(t *testing.T) {
	release := make(chan struct{})
	first := make(chan struct{})
	var calls atomic.Int32
	s := newTestScheduler(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		if calls.Add(1) == 1 {
			close(first)
			<-release
		}
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	e1, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)
	<-first
	e2, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)

	require.True(t, s.Cancel(e2.ID()))
	waitAll(t, e2)
	assert.Equal(t, domain.PipelineStatusCancelled, e2.Status())
	assert.Equal(t, 1, s.QueueDepth())

	close(release)
	waitAll(t, e1)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.Cancel(e2.ID()))
}

func TestCancelRunningReleasesLane(t *testing.T) {
	first := make(chan struct{})
	var calls atomic.Int32
	s := newTestScheduler(t, transportFunc(func(ctx context.Context, _ ports.Request) (domain.Envelope, error) {
		if calls.Add(1) == 1 {
			close(first)
			<-ctx.Done()
			return domain.Envelope{}, &domain.TransportError{Err: ctx.Err()}
		}
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	e1, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)
	<-first
	e2, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)

	require.True(t, s.Cancel(e1.ID()))
	waitAll(t, e1, e2)

	assert.Equal(t, domain.PipelineStatusCancelled, e1.Status())
	assert.Equal(t, domain.PipelineStatusFinished, e2.Status())
	assert.True(t, e2.Delivered())
}

func TestSubmitIndependent(t *testing.T) {
	s := newTestScheduler(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, s.SubmitIndependent("task", func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(5), ran.Load())
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	s := newTestScheduler(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		time.Sleep(5 * time.Millisecond)
		return domain.NewEnvelope([]byte(echoBody)), nil
	}))

	var insts []*pipeline.Instance
	for i := 0; i < 3; i++ {
		inst, err := s.Submit(domain.NewApplicationOpen(time.Now()))
		require.NoError(t, err)
		insts = append(insts, inst)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	for _, inst := range insts {
		assert.Equal(t, domain.PipelineStatusFinished, inst.Status())
	}

	_, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, s.SubmitIndependent("late", func(context.Context) error { return nil }), ErrClosed)
}

func TestShutdownTimeoutCancelsPending(t *testing.T) {
	s := newTestScheduler(t, transportFunc(func(ctx context.Context, _ ports.Request) (domain.Envelope, error) {
		<-ctx.Done()
		return domain.Envelope{}, &domain.TransportError{Err: ctx.Err()}
	}))

	e1, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)
	e2, err := s.Submit(domain.NewApplicationOpen(time.Now()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Shutdown(ctx))

	waitAll(t, e1, e2)
	assert.Equal(t, domain.PipelineStatusCancelled, e1.Status())
	assert.Equal(t, domain.PipelineStatusCancelled, e2.Status())
}

func TestSubmitRejectsInvalidEvent(t *testing.T) {
	s := newTestScheduler(t, transportFunc(func(context.Context, ports.Request) (domain.Envelope, error) {
		return domain.Envelope{}, nil
	}))

	_, err := s.Submit(domain.Event{Kind: "bogus"})
	assert.Error(t, err)
	assert.Zero(t, s.QueueDepth())
}
