package ports

import (
	"context"
	"encoding/json"

	"github.com/aescanero/rover/pkg/domain"
)

// Serializer encodes a domain value (event or message) into a wire payload.
// Failures are *domain.SerializationError.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
}

// Mapper maps a raw payload into a domain value. target is a pointer to
// domain.Event, domain.Message, domain.Screen or a slice of Region/Message.
// Failures are *domain.MappingError.
type Mapper interface {
	Map(raw json.RawMessage, target interface{}) error
}

// Request is a single call to the backend API
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Transport sends requests to the backend. Failures are *domain.TransportError.
type Transport interface {
	Send(ctx context.Context, req Request) (domain.Envelope, error)
}

// CapabilityProbe reads an ambient device capability
type CapabilityProbe interface {
	BluetoothEnabled(ctx context.Context) (bool, error)
}

// RegionMonitor owns the set of monitored regions
type RegionMonitor interface {
	Start() error
	Stop()
	IsMonitoring() bool
	SetMonitoredRegions(regions []domain.Region)
	MonitoredRegions() []domain.Region
}
