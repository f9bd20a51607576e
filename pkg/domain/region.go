package domain

import "fmt"

// RegionKind distinguishes geofences from proximity beacons
type RegionKind string

const (
	RegionKindCircular RegionKind = "circular"
	RegionKindBeacon   RegionKind = "beacon"
)

// Region is a monitored geofence or beacon descriptor
type Region struct {
	ID   string     `json:"id"`
	Kind RegionKind `json:"kind"`

	// Circular regions
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Radius    float64 `json:"radius,omitempty"`

	// Beacon regions
	UUID  string `json:"uuid,omitempty"`
	Major *int   `json:"major,omitempty"`
	Minor *int   `json:"minor,omitempty"`
}

// Key returns a stable identity used for set semantics
func (r Region) Key() string {
	if r.Kind == RegionKindBeacon {
		key := fmt.Sprintf("beacon:%s", r.UUID)
		if r.Major != nil {
			key = fmt.Sprintf("%s:%d", key, *r.Major)
		}
		if r.Minor != nil {
			key = fmt.Sprintf("%s:%d", key, *r.Minor)
		}
		return key
	}
	if r.ID != "" {
		return "circular:" + r.ID
	}
	return fmt.Sprintf("circular:%f:%f:%f", r.Latitude, r.Longitude, r.Radius)
}

// Validate checks the fields required by the region kind
func (r Region) Validate() error {
	switch r.Kind {
	case RegionKindCircular:
		if r.Radius <= 0 {
			return fmt.Errorf("circular region requires a positive radius")
		}
	case RegionKindBeacon:
		if r.UUID == "" {
			return fmt.Errorf("beacon region requires a uuid")
		}
	default:
		return fmt.Errorf("unknown region kind: %q", r.Kind)
	}
	return nil
}
