package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the variant carried by an Event
type EventKind string

const (
	EventKindApplicationOpen   EventKind = "app-open"
	EventKindLocationUpdate    EventKind = "location-update"
	EventKindRegionEnter       EventKind = "region-enter"
	EventKindRegionExit        EventKind = "region-exit"
	EventKindBeaconRegionEnter EventKind = "beacon-region-enter"
	EventKindBeaconRegionExit  EventKind = "beacon-region-exit"
	EventKindMessageOpen       EventKind = "message-open"
	EventKindDeviceUpdate      EventKind = "device-update"
)

// Valid reports whether k is a known event kind
func (k EventKind) Valid() bool {
	switch k {
	case EventKindApplicationOpen, EventKindLocationUpdate,
		EventKindRegionEnter, EventKindRegionExit,
		EventKindBeaconRegionEnter, EventKindBeaconRegionExit,
		EventKindMessageOpen, EventKindDeviceUpdate:
		return true
	default:
		return false
	}
}

// Location is a single position fix
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is a tracked happening. Only the fields relevant to Kind are set.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Location *Location `json:"location,omitempty"`
	Region   *Region   `json:"region,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Source   string    `json:"source,omitempty"`

	// Properties holds values echoed or added by the backend
	Properties map[string]interface{} `json:"properties,omitempty"`
}

func newEvent(kind EventKind, at time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: at.UTC(),
	}
}

// NewApplicationOpen creates an app-open event
func NewApplicationOpen(at time.Time) Event {
	return newEvent(EventKindApplicationOpen, at)
}

// NewLocationUpdate creates a location-update event
func NewLocationUpdate(loc Location, at time.Time) Event {
	e := newEvent(EventKindLocationUpdate, at)
	e.Location = &loc
	return e
}

// NewRegionEnter creates an enter event for a circular or beacon region
func NewRegionEnter(region Region, at time.Time) Event {
	kind := EventKindRegionEnter
	if region.Kind == RegionKindBeacon {
		kind = EventKindBeaconRegionEnter
	}
	e := newEvent(kind, at)
	e.Region = &region
	return e
}

// NewRegionExit creates an exit event for a circular or beacon region
func NewRegionExit(region Region, at time.Time) Event {
	kind := EventKindRegionExit
	if region.Kind == RegionKindBeacon {
		kind = EventKindBeaconRegionExit
	}
	e := newEvent(kind, at)
	e.Region = &region
	return e
}

// NewMessageOpen creates a message-open event. source is "inbox" or "notification".
func NewMessageOpen(msg Message, source string, at time.Time) Event {
	e := newEvent(EventKindMessageOpen, at)
	e.Message = &msg
	e.Source = source
	return e
}

// NewDeviceUpdate creates a device-update event
func NewDeviceUpdate(at time.Time) Event {
	return newEvent(EventKindDeviceUpdate, at)
}
