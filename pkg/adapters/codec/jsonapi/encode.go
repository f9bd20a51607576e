package jsonapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aescanero/rover/pkg/domain"
)

type document struct {
	Data resource `json:"data"`
}

type resource struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Codec implements ports.Serializer and ports.Mapper for JSON:API documents
type Codec struct{}

// New creates a codec
func New() *Codec {
	return &Codec{}
}

// Serialize encodes a domain.Event or domain.Message (value or pointer)
func (c *Codec) Serialize(v interface{}) ([]byte, error) {
	var res resource
	var err error

	switch val := v.(type) {
	case domain.Event:
		res, err = eventResource(val)
	case *domain.Event:
		if val == nil {
			return nil, &domain.SerializationError{Err: fmt.Errorf("nil event")}
		}
		res, err = eventResource(*val)
	case domain.Message:
		res, err = messageResource(val)
	case *domain.Message:
		if val == nil {
			return nil, &domain.SerializationError{Err: fmt.Errorf("nil message")}
		}
		res, err = messageResource(*val)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return nil, &domain.SerializationError{Err: err}
	}

	data, err := json.Marshal(document{Data: res})
	if err != nil {
		return nil, &domain.SerializationError{Err: err}
	}
	return data, nil
}

func eventResource(e domain.Event) (resource, error) {
	wire, ok := kindToWire[e.Kind]
	if !ok {
		return resource{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Timestamp.IsZero() {
		return resource{}, fmt.Errorf("event %s has no timestamp", e.ID)
	}

	attrs := map[string]interface{}{
		"object":    wire.object,
		"action":    wire.action,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	switch e.Kind {
	case domain.EventKindLocationUpdate:
		if e.Location == nil {
			return resource{}, fmt.Errorf("location event %s has no location", e.ID)
		}
		attrs["latitude"] = e.Location.Latitude
		attrs["longitude"] = e.Location.Longitude
		if e.Location.Accuracy > 0 {
			attrs["accuracy"] = e.Location.Accuracy
		}
	case domain.EventKindRegionEnter, domain.EventKindRegionExit,
		domain.EventKindBeaconRegionEnter, domain.EventKindBeaconRegionExit:
		if e.Region == nil {
			return resource{}, fmt.Errorf("region event %s has no region", e.ID)
		}
		for k, v := range regionAttributes(*e.Region) {
			attrs[k] = v
		}
	case domain.EventKindMessageOpen:
		if e.Message == nil {
			return resource{}, fmt.Errorf("message event %s has no message", e.ID)
		}
		attrs["message-id"] = e.Message.ID
		if e.Source != "" {
			attrs["source"] = e.Source
		}
	}

	return resource{Type: typeEvents, ID: e.ID, Attributes: attrs}, nil
}

func regionAttributes(r domain.Region) map[string]interface{} {
	attrs := map[string]interface{}{}
	if r.ID != "" {
		attrs["identifier"] = r.ID
	}
	if r.Kind == domain.RegionKindBeacon {
		attrs["uuid"] = r.UUID
		if r.Major != nil {
			attrs["major-number"] = *r.Major
		}
		if r.Minor != nil {
			attrs["minor-number"] = *r.Minor
		}
		return attrs
	}
	attrs["latitude"] = r.Latitude
	attrs["longitude"] = r.Longitude
	attrs["radius"] = r.Radius
	return attrs
}

func messageResource(m domain.Message) (resource, error) {
	if m.ID == "" {
		return resource{}, fmt.Errorf("message id is required")
	}
	return resource{
		Type: typeMessages,
		ID:   m.ID,
		Attributes: map[string]interface{}{
			"read":  m.Read,
			"saved": m.Saved,
		},
	}, nil
}
