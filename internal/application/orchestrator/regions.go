package orchestrator

import (
	"fmt"
	"time"

	"github.com/aescanero/rover/pkg/domain"
)

// UpdateLocation tracks a location fix
func (m *Manager) UpdateLocation(loc domain.Location) (string, error) {
	at := loc.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return m.SendEvent(domain.NewLocationUpdate(loc, at))
}

// DidEnterRegion tracks entering a circular or beacon region
func (m *Manager) DidEnterRegion(region domain.Region) (string, error) {
	return m.SendEvent(domain.NewRegionEnter(region, time.Now()))
}

// DidExitRegion tracks leaving a circular or beacon region
func (m *Manager) DidExitRegion(region domain.Region) (string, error) {
	return m.SendEvent(domain.NewRegionExit(region, time.Now()))
}

// StartMonitoring starts the region monitor
func (m *Manager) StartMonitoring() error {
	if m.monitor == nil {
		return fmt.Errorf("region monitor is not configured")
	}
	return m.monitor.Start()
}

// StopMonitoring stops the region monitor
func (m *Manager) StopMonitoring() {
	if m.monitor != nil {
		m.monitor.Stop()
	}
}

// IsMonitoring reports whether regions are being monitored
func (m *Manager) IsMonitoring() bool {
	return m.monitor != nil && m.monitor.IsMonitoring()
}

// MonitoredRegions returns the monitored region set
func (m *Manager) MonitoredRegions() []domain.Region {
	if m.monitor == nil {
		return nil
	}
	return m.monitor.MonitoredRegions()
}
