package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	deviceKeyStatus    = "status"
	deviceKeyPushToken = "push-token"
)

// Store implements StateStorage and DeviceStore using PostgreSQL via pgx
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New creates a new Store backed by the given pgx connection pool
func New(db *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Connect opens a pool for url with at most maxConns connections
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// SaveState upserts a pipeline snapshot
func (s *Store) SaveState(ctx context.Context, state *domain.PipelineState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO rover_pipelines (id, data, submitted_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		state.PipelineID, data, state.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to save state %s: %w", state.PipelineID, err)
	}

	s.logger.Debug("state saved",
		zap.String("pipeline_id", state.PipelineID),
		zap.String("status", string(state.Status)))
	return nil
}

// GetState retrieves a pipeline snapshot
func (s *Store) GetState(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM rover_pipelines WHERE id = $1`, pipelineID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get state %s: %w", pipelineID, err)
	}

	var state domain.PipelineState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// DeleteState deletes a pipeline snapshot
func (s *Store) DeleteState(ctx context.Context, pipelineID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM rover_pipelines WHERE id = $1`, pipelineID); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", pipelineID, err)
	}
	return nil
}

// ListStates lists all snapshots ordered by submission time
func (s *Store) ListStates(ctx context.Context) ([]*domain.PipelineState, error) {
	rows, err := s.db.Query(ctx, `SELECT data FROM rover_pipelines ORDER BY submitted_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	var states []*domain.PipelineState
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		var state domain.PipelineState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		states = append(states, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate states: %w", err)
	}
	return states, nil
}

// SaveStatus records the latest capability reading
func (s *Store) SaveStatus(ctx context.Context, status domain.DeviceStatus) error {
	return s.putDevice(ctx, deviceKeyStatus, status)
}

// LoadStatus returns the latest capability reading
func (s *Store) LoadStatus(ctx context.Context) (domain.DeviceStatus, error) {
	var status domain.DeviceStatus
	if err := s.getDevice(ctx, deviceKeyStatus, &status); err != nil {
		return domain.DeviceStatus{}, err
	}
	return status, nil
}

// SavePushToken stores the push token
func (s *Store) SavePushToken(ctx context.Context, token string) error {
	return s.putDevice(ctx, deviceKeyPushToken, token)
}

// PushToken returns the stored push token
func (s *Store) PushToken(ctx context.Context) (string, error) {
	var token string
	if err := s.getDevice(ctx, deviceKeyPushToken, &token); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) putDevice(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal device %s: %w", key, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rover_device (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, data)
	if err != nil {
		return fmt.Errorf("failed to save device %s: %w", key, err)
	}
	return nil
}

func (s *Store) getDevice(ctx context.Context, key string, out interface{}) error {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM rover_device WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("failed to get device %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal device %s: %w", key, err)
	}
	return nil
}
