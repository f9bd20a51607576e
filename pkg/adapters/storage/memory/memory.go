package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
)

// InMemoryStateStorage implements StateStorage using an in-memory map
type InMemoryStateStorage struct {
	states map[string]*domain.PipelineState
	mu     sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage() *InMemoryStateStorage {
	return &InMemoryStateStorage{
		states: make(map[string]*domain.PipelineState),
	}
}

// SaveState stores a copy of the snapshot
func (s *InMemoryStateStorage) SaveState(ctx context.Context, state *domain.PipelineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.PipelineID] = state.Clone()
	return nil
}

// GetState returns a copy of the stored snapshot
func (s *InMemoryStateStorage) GetState(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[pipelineID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return st.Clone(), nil
}

// DeleteState removes a snapshot
func (s *InMemoryStateStorage) DeleteState(ctx context.Context, pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, pipelineID)
	return nil
}

// ListStates returns all snapshots ordered by submission time
func (s *InMemoryStateStorage) ListStates(ctx context.Context) ([]*domain.PipelineState, error) {
	s.mu.RLock()
	states := make([]*domain.PipelineState, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, st.Clone())
	}
	s.mu.RUnlock()

	sortStates(states)
	return states, nil
}

func sortStates(states []*domain.PipelineState) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].SubmittedAt.Equal(states[j].SubmittedAt) {
			return states[i].PipelineID < states[j].PipelineID
		}
		return states[i].SubmittedAt.Before(states[j].SubmittedAt)
	})
}

// InMemoryDeviceStore implements DeviceStore using in-memory fields
type InMemoryDeviceStore struct {
	mu        sync.RWMutex
	status    *domain.DeviceStatus
	pushToken string
}

// NewInMemoryDeviceStore creates a new in-memory device store
func NewInMemoryDeviceStore() *InMemoryDeviceStore {
	return &InMemoryDeviceStore{}
}

// SaveStatus records the latest capability reading
func (d *InMemoryDeviceStore) SaveStatus(ctx context.Context, status domain.DeviceStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status = &status
	return nil
}

// LoadStatus returns the latest capability reading
func (d *InMemoryDeviceStore) LoadStatus(ctx context.Context) (domain.DeviceStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.status == nil {
		return domain.DeviceStatus{}, ports.ErrNotFound
	}
	return *d.status, nil
}

// SavePushToken stores the push token
func (d *InMemoryDeviceStore) SavePushToken(ctx context.Context, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pushToken = token
	return nil
}

// PushToken returns the stored push token
func (d *InMemoryDeviceStore) PushToken(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.pushToken == "" {
		return "", ports.ErrNotFound
	}
	return d.pushToken, nil
}
