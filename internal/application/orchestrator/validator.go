package orchestrator

import (
	"fmt"

	"github.com/aescanero/rover/pkg/domain"
)

// Validator validates events before they are submitted
type Validator struct{}

// NewValidator creates a new event validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that an event carries the payload its kind needs
func (v *Validator) Validate(e domain.Event) error {
	if e.ID == "" {
		return fmt.Errorf("event ID is required")
	}

	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind: %q", e.Kind)
	}

	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}

	switch e.Kind {
	case domain.EventKindLocationUpdate:
		if e.Location == nil {
			return fmt.Errorf("%s requires a location", e.Kind)
		}
		if err := v.validateLocation(*e.Location); err != nil {
			return err
		}

	case domain.EventKindRegionEnter, domain.EventKindRegionExit:
		if err := v.validateRegion(e, domain.RegionKindCircular); err != nil {
			return err
		}

	case domain.EventKindBeaconRegionEnter, domain.EventKindBeaconRegionExit:
		if err := v.validateRegion(e, domain.RegionKindBeacon); err != nil {
			return err
		}

	case domain.EventKindMessageOpen:
		if e.Message == nil || e.Message.ID == "" {
			return fmt.Errorf("%s requires a message with an ID", e.Kind)
		}
	}

	return nil
}

func (v *Validator) validateLocation(loc domain.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %f", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %f", loc.Longitude)
	}
	return nil
}

func (v *Validator) validateRegion(e domain.Event, kind domain.RegionKind) error {
	if e.Region == nil {
		return fmt.Errorf("%s requires a region", e.Kind)
	}
	if e.Region.Kind != kind {
		return fmt.Errorf("%s requires a %s region, got %q", e.Kind, kind, e.Region.Kind)
	}
	if err := e.Region.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}
	return nil
}
