package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(id string, submitted time.Time) *domain.PipelineState {
	return &domain.PipelineState{
		PipelineID:  id,
		EventKind:   domain.EventKindApplicationOpen,
		Status:      domain.PipelineStatusPending,
		SubmittedAt: submitted,
		NodeStates: map[string]*domain.NodeState{
			"transmit": {NodeID: "transmit", Status: "pending"},
		},
	}
}

func TestStateRoundTripIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStateStorage()

	st := newState("p1", time.Now())
	require.NoError(t, store.SaveState(ctx, st))

	st.NodeStates["transmit"].Status = "running"

	got, err := store.GetState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.NodeStates["transmit"].Status)

	got.Status = domain.PipelineStatusFinished
	again, err := store.GetState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusPending, again.Status)
}

func TestStateNotFound(t *testing.T) {
	_, err := NewInMemoryStateStorage().GetState(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestListStatesOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStateStorage()
	base := time.Now()

	require.NoError(t, store.SaveState(ctx, newState("late", base.Add(time.Second))))
	require.NoError(t, store.SaveState(ctx, newState("early", base)))
	require.NoError(t, store.SaveState(ctx, newState("gone", base)))
	require.NoError(t, store.DeleteState(ctx, "gone"))

	states, err := store.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "early", states[0].PipelineID)
	assert.Equal(t, "late", states[1].PipelineID)
}

func TestDeviceStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryDeviceStore()

	_, err := store.LoadStatus(ctx)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = store.PushToken(ctx)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	status := domain.DeviceStatus{BluetoothOn: true, Timestamp: time.Now()}
	require.NoError(t, store.SaveStatus(ctx, status))
	require.NoError(t, store.SavePushToken(ctx, "tok"))

	got, err := store.LoadStatus(ctx)
	require.NoError(t, err)
	assert.True(t, got.BluetoothOn)

	token, err := store.PushToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}
