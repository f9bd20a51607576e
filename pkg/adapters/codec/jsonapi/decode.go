package jsonapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/tidwall/gjson"
)

// Map decodes raw into target. raw is a resource object, or an array of
// resource objects for slice targets.
func (c *Codec) Map(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return &domain.MappingError{Target: targetName(target), Err: fmt.Errorf("invalid or empty payload")}
	}
	doc := gjson.ParseBytes(raw)

	var err error
	switch t := target.(type) {
	case *domain.Event:
		*t, err = mapEvent(doc)
	case *[]domain.Region:
		*t, err = mapRegions(doc)
	case *domain.Message:
		*t, err = mapMessage(doc)
	case *[]domain.Message:
		*t, err = mapMessages(doc)
	case *domain.Screen:
		*t, err = mapScreen(doc)
	default:
		err = fmt.Errorf("unsupported target %T", target)
	}
	if err != nil {
		return &domain.MappingError{Target: targetName(target), Err: err}
	}
	return nil
}

func targetName(target interface{}) string {
	switch target.(type) {
	case *domain.Event:
		return "event"
	case *[]domain.Region:
		return "regions"
	case *domain.Message:
		return "message"
	case *[]domain.Message:
		return "messages"
	case *domain.Screen:
		return "screen"
	default:
		return fmt.Sprintf("%T", target)
	}
}

func requireType(res gjson.Result, types ...string) error {
	got := res.Get("type").String()
	for _, t := range types {
		if got == t {
			return nil
		}
	}
	return fmt.Errorf("unexpected resource type %q", got)
}

func mapEvent(res gjson.Result) (domain.Event, error) {
	if !res.IsObject() {
		return domain.Event{}, fmt.Errorf("event must be an object")
	}
	if err := requireType(res, typeEvents); err != nil {
		return domain.Event{}, err
	}
	attrs := res.Get("attributes")
	key := objectAction{
		object: attrs.Get("object").String(),
		action: attrs.Get("action").String(),
	}
	kind, ok := wireToKind[key]
	if !ok {
		return domain.Event{}, fmt.Errorf("unknown event %s/%s", key.object, key.action)
	}

	event := domain.Event{
		ID:   res.Get("id").String(),
		Kind: kind,
	}
	if ts := attrs.Get("timestamp"); ts.Exists() {
		parsed, err := time.Parse(time.RFC3339Nano, ts.String())
		if err != nil {
			return domain.Event{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		event.Timestamp = parsed
	}

	props := make(map[string]interface{})
	attrs.ForEach(func(k, v gjson.Result) bool {
		switch k.String() {
		case "object", "action", "timestamp":
		default:
			props[k.String()] = v.Value()
		}
		return true
	})
	if len(props) > 0 {
		event.Properties = props
	}
	return event, nil
}

func mapRegions(res gjson.Result) ([]domain.Region, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("regions must be an array")
	}
	var regions []domain.Region
	var err error
	res.ForEach(func(_, item gjson.Result) bool {
		var region domain.Region
		var ok bool
		region, ok, err = mapRegion(item)
		if err != nil {
			return false
		}
		if ok {
			regions = append(regions, region)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return regions, nil
}

// mapRegion maps one included resource. Resources that are not regions are
// skipped.
func mapRegion(res gjson.Result) (domain.Region, bool, error) {
	attrs := res.Get("attributes")
	region := domain.Region{ID: res.Get("id").String()}

	switch res.Get("type").String() {
	case typeGeofenceRegions:
		region.Kind = domain.RegionKindCircular
		region.Latitude = attrs.Get("latitude").Float()
		region.Longitude = attrs.Get("longitude").Float()
		region.Radius = attrs.Get("radius").Float()
	case typeBeaconRegions:
		region.Kind = domain.RegionKindBeacon
		region.UUID = attrs.Get("uuid").String()
		if v := attrs.Get("major-number"); v.Exists() && v.Type != gjson.Null {
			major := int(v.Int())
			region.Major = &major
		}
		if v := attrs.Get("minor-number"); v.Exists() && v.Type != gjson.Null {
			minor := int(v.Int())
			region.Minor = &minor
		}
	default:
		return domain.Region{}, false, nil
	}

	if err := region.Validate(); err != nil {
		return domain.Region{}, false, fmt.Errorf("region %s: %w", region.ID, err)
	}
	return region, true, nil
}

func mapMessage(res gjson.Result) (domain.Message, error) {
	if !res.IsObject() {
		return domain.Message{}, fmt.Errorf("message must be an object")
	}
	if err := requireType(res, typeMessages); err != nil {
		return domain.Message{}, err
	}
	id := res.Get("id").String()
	if id == "" {
		return domain.Message{}, fmt.Errorf("message id is required")
	}
	attrs := res.Get("attributes")
	msg := domain.Message{
		ID:     id,
		Title:  attrs.Get("title").String(),
		Text:   attrs.Get("notification-text").String(),
		Action: messageAction(attrs.Get("action").String()),
		URL:    attrs.Get("url").String(),
		Read:   attrs.Get("read").Bool(),
		Saved:  attrs.Get("saved").Bool(),
	}
	if ts := attrs.Get("timestamp"); ts.Exists() {
		if parsed, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			msg.Timestamp = parsed
		}
	}
	if lp := attrs.Get("landing-page"); lp.IsObject() {
		screen, err := screenFromAttributes(lp)
		if err != nil {
			return domain.Message{}, err
		}
		msg.LandingPage = &screen
	}
	return msg, nil
}

func messageAction(v string) domain.MessageAction {
	switch domain.MessageAction(v) {
	case domain.MessageActionWebsite, domain.MessageActionDeepLink, domain.MessageActionLandingPage:
		return domain.MessageAction(v)
	default:
		return domain.MessageActionNone
	}
}

func mapMessages(res gjson.Result) ([]domain.Message, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("messages must be an array")
	}
	messages := make([]domain.Message, 0, len(res.Array()))
	for _, item := range res.Array() {
		msg, err := mapMessage(item)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func mapScreen(res gjson.Result) (domain.Screen, error) {
	if !res.IsObject() {
		return domain.Screen{}, fmt.Errorf("screen must be an object")
	}
	if err := requireType(res, typeScreens, typeLandingPages); err != nil {
		return domain.Screen{}, err
	}
	screen, err := screenFromAttributes(res.Get("attributes"))
	if err != nil {
		return domain.Screen{}, err
	}
	screen.ID = res.Get("id").String()
	return screen, nil
}

func screenFromAttributes(attrs gjson.Result) (domain.Screen, error) {
	screen := domain.Screen{Title: attrs.Get("title").String()}
	rows := attrs.Get("rows")
	if rows.Exists() && !rows.IsArray() {
		return domain.Screen{}, fmt.Errorf("screen rows must be an array")
	}
	for _, row := range rows.Array() {
		m, ok := row.Value().(map[string]interface{})
		if !ok {
			return domain.Screen{}, fmt.Errorf("screen row must be an object")
		}
		screen.Rows = append(screen.Rows, m)
	}
	return screen, nil
}
