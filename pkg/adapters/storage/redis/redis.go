package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	statePrefix = "rover:state:"

	keyDeviceStatus    = "rover:device:status"
	keyDevicePushToken = "rover:device:push-token"
)

// StateStorage implements StateStorage using Redis
type StateStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage. A zero ttl keeps
// snapshots until deleted.
func NewStateStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveState saves a pipeline snapshot
func (s *StateStorage) SaveState(ctx context.Context, state *domain.PipelineState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, getStateKey(state.PipelineID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("state saved",
		zap.String("pipeline_id", state.PipelineID),
		zap.String("status", string(state.Status)))

	return nil
}

// GetState retrieves a pipeline snapshot
func (s *StateStorage) GetState(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	data, err := s.client.Get(ctx, getStateKey(pipelineID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var state domain.PipelineState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// DeleteState deletes a pipeline snapshot
func (s *StateStorage) DeleteState(ctx context.Context, pipelineID string) error {
	if err := s.client.Del(ctx, getStateKey(pipelineID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	s.logger.Debug("state deleted", zap.String("pipeline_id", pipelineID))
	return nil
}

// ListStates lists all snapshots ordered by submission time
func (s *StateStorage) ListStates(ctx context.Context) ([]*domain.PipelineState, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, statePrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	states := make([]*domain.PipelineState, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// expired between SCAN and GET
			continue
		}

		var state domain.PipelineState
		if err := json.Unmarshal(data, &state); err != nil {
			s.logger.Warn("skipping unreadable state", zap.String("key", key), zap.Error(err))
			continue
		}

		states = append(states, &state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].SubmittedAt.Before(states[j].SubmittedAt)
	})
	return states, nil
}

func getStateKey(pipelineID string) string {
	return statePrefix + pipelineID
}

// DeviceStore implements DeviceStore using Redis
type DeviceStore struct {
	client *redis.Client
}

// NewDeviceStore creates a new Redis device store
func NewDeviceStore(client *redis.Client) *DeviceStore {
	return &DeviceStore{client: client}
}

// SaveStatus records the latest capability reading
func (d *DeviceStore) SaveStatus(ctx context.Context, status domain.DeviceStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal device status: %w", err)
	}
	if err := d.client.Set(ctx, keyDeviceStatus, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save device status: %w", err)
	}
	return nil
}

// LoadStatus returns the latest capability reading
func (d *DeviceStore) LoadStatus(ctx context.Context) (domain.DeviceStatus, error) {
	data, err := d.client.Get(ctx, keyDeviceStatus).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DeviceStatus{}, ports.ErrNotFound
		}
		return domain.DeviceStatus{}, fmt.Errorf("failed to get device status: %w", err)
	}

	var status domain.DeviceStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.DeviceStatus{}, fmt.Errorf("failed to unmarshal device status: %w", err)
	}
	return status, nil
}

// SavePushToken stores the push token
func (d *DeviceStore) SavePushToken(ctx context.Context, token string) error {
	if err := d.client.Set(ctx, keyDevicePushToken, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to save push token: %w", err)
	}
	return nil
}

// PushToken returns the stored push token
func (d *DeviceStore) PushToken(ctx context.Context) (string, error) {
	token, err := d.client.Get(ctx, keyDevicePushToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNotFound
		}
		return "", fmt.Errorf("failed to get push token: %w", err)
	}
	return token, nil
}
