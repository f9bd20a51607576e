// Package memory keeps the monitored region set in process.
package memory

import (
	"fmt"
	"sync"

	"github.com/aescanero/rover/pkg/domain"
	"go.uber.org/zap"
)

// Monitor implements ports.RegionMonitor. The monitored set is kept while
// monitoring is stopped so a restart resumes with the last known regions.
type Monitor struct {
	mu         sync.RWMutex
	monitoring bool
	regions    []domain.Region
	logger     *zap.Logger
}

// NewMonitor creates a stopped monitor with no regions
func NewMonitor(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{logger: logger}
}

// Start begins monitoring. Starting twice is an error.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitoring {
		return fmt.Errorf("region monitoring already started")
	}
	m.monitoring = true
	m.logger.Info("region monitoring started", zap.Int("regions", len(m.regions)))
	return nil
}

// Stop ends monitoring
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		return
	}
	m.monitoring = false
	m.logger.Info("region monitoring stopped")
}

// IsMonitoring reports whether monitoring is active
func (m *Monitor) IsMonitoring() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitoring
}

// SetMonitoredRegions replaces the monitored set. Invalid regions and
// duplicates (by Key) are dropped.
func (m *Monitor) SetMonitoredRegions(regions []domain.Region) {
	seen := make(map[string]struct{}, len(regions))
	next := make([]domain.Region, 0, len(regions))
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			m.logger.Warn("ignoring invalid region", zap.String("region_id", r.ID), zap.Error(err))
			continue
		}
		if _, dup := seen[r.Key()]; dup {
			continue
		}
		seen[r.Key()] = struct{}{}
		next = append(next, r)
	}

	m.mu.Lock()
	m.regions = next
	m.mu.Unlock()

	m.logger.Debug("monitored regions replaced", zap.Int("regions", len(next)))
}

// MonitoredRegions returns a copy of the monitored set
func (m *Monitor) MonitoredRegions() []domain.Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Region, len(m.regions))
	copy(out, m.regions)
	return out
}
