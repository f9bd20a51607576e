package ports

import (
	"context"
	"errors"

	"github.com/aescanero/rover/pkg/domain"
)

// ErrNotFound is returned by stores when a key does not exist
var ErrNotFound = errors.New("not found")

// StateStorage stores pipeline snapshots
type StateStorage interface {
	SaveState(ctx context.Context, state *domain.PipelineState) error
	GetState(ctx context.Context, pipelineID string) (*domain.PipelineState, error)
	DeleteState(ctx context.Context, pipelineID string) error
	ListStates(ctx context.Context) ([]*domain.PipelineState, error)
}

// DeviceStore persists device level state
type DeviceStore interface {
	SaveStatus(ctx context.Context, status domain.DeviceStatus) error
	LoadStatus(ctx context.Context) (domain.DeviceStatus, error)
	SavePushToken(ctx context.Context, token string) error
	PushToken(ctx context.Context) (string, error)
}
