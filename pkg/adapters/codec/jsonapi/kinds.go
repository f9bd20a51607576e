package jsonapi

import "github.com/aescanero/rover/pkg/domain"

// Resource types used on the wire
const (
	typeEvents          = "events"
	typeMessages        = "messages"
	typeGeofenceRegions = "geofence-regions"
	typeBeaconRegions   = "beacon-regions"
	typeScreens         = "screens"
	typeLandingPages    = "landing-pages"
)

type objectAction struct {
	object string
	action string
}

var kindToWire = map[domain.EventKind]objectAction{
	domain.EventKindApplicationOpen:   {"app", "open"},
	domain.EventKindLocationUpdate:    {"location", "update"},
	domain.EventKindRegionEnter:       {"geofence-region", "enter"},
	domain.EventKindRegionExit:        {"geofence-region", "exit"},
	domain.EventKindBeaconRegionEnter: {"beacon-region", "enter"},
	domain.EventKindBeaconRegionExit:  {"beacon-region", "exit"},
	domain.EventKindMessageOpen:       {"message", "open"},
	domain.EventKindDeviceUpdate:      {"device", "update"},
}

var wireToKind = func() map[objectAction]domain.EventKind {
	m := make(map[objectAction]domain.EventKind, len(kindToWire))
	for k, v := range kindToWire {
		m[v] = k
	}
	return m
}()
