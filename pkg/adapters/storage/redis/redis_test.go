package redis

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStateStorageRoundTrip(t *testing.T) {
	_, client := newTestClient(t)
	store := NewStateStorage(client, 0, zap.NewNop())
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	state := &domain.PipelineState{
		PipelineID:  "p1",
		EventID:     "e1",
		EventKind:   domain.EventKindLocationUpdate,
		Status:      domain.PipelineStatusRunning,
		SubmittedAt: started,
		StartedAt:   &started,
		NodeStates: map[string]*domain.NodeState{
			"serialize": {NodeID: "serialize", Status: "completed"},
		},
	}
	require.NoError(t, store.SaveState(ctx, state))

	got, err := store.GetState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusRunning, got.Status)
	assert.Equal(t, "completed", got.NodeStates["serialize"].Status)
	require.NotNil(t, got.StartedAt)
	assert.True(t, started.Equal(*got.StartedAt))

	require.NoError(t, store.DeleteState(ctx, "p1"))
	_, err = store.GetState(ctx, "p1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStateStorageTTL(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewStateStorage(client, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, &domain.PipelineState{PipelineID: "p1"}))
	assert.Equal(t, time.Minute, mr.TTL(getStateKey("p1")))

	mr.FastForward(2 * time.Minute)
	_, err := store.GetState(ctx, "p1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestListStates(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewStateStorage(client, 0, zap.NewNop())
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.SaveState(ctx, &domain.PipelineState{PipelineID: "b", SubmittedAt: base.Add(time.Second)}))
	require.NoError(t, store.SaveState(ctx, &domain.PipelineState{PipelineID: "a", SubmittedAt: base}))
	require.NoError(t, mr.Set(statePrefix+"broken", "not json"))
	require.NoError(t, mr.Set("unrelated", "x"))

	states, err := store.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].PipelineID)
	assert.Equal(t, "b", states[1].PipelineID)
}

func TestDeviceStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewDeviceStore(client)
	ctx := context.Background()

	_, err := store.LoadStatus(ctx)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = store.PushToken(ctx)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, store.SaveStatus(ctx, domain.DeviceStatus{BluetoothOn: true}))
	require.NoError(t, store.SavePushToken(ctx, "abc"))

	status, err := store.LoadStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.BluetoothOn)

	token, err := store.PushToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.True(t, mr.Exists(keyDevicePushToken))
}
