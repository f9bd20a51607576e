package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/rover/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) (*StreamsEventBus, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus, err := NewStreamsEventBus(client, "rover", "test-consumer", zap.NewNop())
	require.NoError(t, err)
	bus.block = 50 * time.Millisecond
	t.Cleanup(func() { bus.Close() })
	return bus, client
}

func TestNewStreamsEventBusValidates(t *testing.T) {
	_, err := NewStreamsEventBus(nil, "g", "c", nil)
	assert.Error(t, err)

	_, err = NewStreamsEventBus(redis.NewClient(&redis.Options{}), "", "c", nil)
	assert.Error(t, err)
}

func TestPublishAppendsToStream(t *testing.T) {
	bus, client := newTestBus(t)
	ctx := context.Background()

	event := ports.LifecycleEvent{
		ID:         "ev-1",
		Type:       ports.EventTypePipelineStarted,
		Timestamp:  time.Now().UTC(),
		PipelineID: "p-1",
	}
	require.NoError(t, bus.Publish(ctx, ports.TopicPipelineEvents, event))

	msgs, err := client.XRange(ctx, getStreamKey(ports.TopicPipelineEvents), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, string(ports.EventTypePipelineStarted), msgs[0].Values["type"])
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	var mu sync.Mutex
	var received []ports.LifecycleEvent
	require.NoError(t, bus.Subscribe(ctx, ports.TopicPipelineEvents, func(ctx context.Context, event ports.LifecycleEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}))

	for _, id := range []string{"a", "b"} {
		require.NoError(t, bus.Publish(ctx, ports.TopicPipelineEvents, ports.LifecycleEvent{
			ID:         id,
			Type:       ports.EventTypeNodeCompleted,
			PipelineID: "p-1",
			NodeID:     "transmit",
		}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a", received[0].ID)
	assert.Equal(t, "b", received[1].ID)
	assert.Equal(t, "transmit", received[1].NodeID)
}

func TestSubscribeTwiceReusesGroup(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	noop := func(context.Context, ports.LifecycleEvent) error { return nil }
	require.NoError(t, bus.Subscribe(ctx, "topic", noop))
	require.NoError(t, bus.Subscribe(ctx, "topic", noop))
	require.NoError(t, bus.Unsubscribe(ctx, "topic"))

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Empty(t, bus.readers)
}
