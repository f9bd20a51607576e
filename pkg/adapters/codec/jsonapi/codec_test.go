package jsonapi

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSerializeLocationEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := domain.NewLocationUpdate(domain.Location{Latitude: 43.65, Longitude: -79.38, Accuracy: 5}, at)

	data, err := New().Serialize(event)
	require.NoError(t, err)

	doc := gjson.ParseBytes(data)
	assert.Equal(t, "events", doc.Get("data.type").String())
	assert.Equal(t, event.ID, doc.Get("data.id").String())
	assert.Equal(t, "location", doc.Get("data.attributes.object").String())
	assert.Equal(t, "update", doc.Get("data.attributes.action").String())
	assert.Equal(t, 43.65, doc.Get("data.attributes.latitude").Float())
	assert.Equal(t, "2024-03-01T12:00:00Z", doc.Get("data.attributes.timestamp").String())
}

func TestSerializeBeaconRegionEvent(t *testing.T) {
	major := 7
	region := domain.Region{ID: "b1", Kind: domain.RegionKindBeacon, UUID: "F7826DA6", Major: &major}
	event := domain.NewRegionEnter(region, time.Now())

	data, err := New().Serialize(&event)
	require.NoError(t, err)

	doc := gjson.ParseBytes(data)
	assert.Equal(t, "beacon-region", doc.Get("data.attributes.object").String())
	assert.Equal(t, "enter", doc.Get("data.attributes.action").String())
	assert.Equal(t, int64(7), doc.Get("data.attributes.major-number").Int())
	assert.False(t, doc.Get("data.attributes.minor-number").Exists())
}

func TestSerializeMessageOpenCarriesSource(t *testing.T) {
	event := domain.NewMessageOpen(domain.Message{ID: "m1"}, "inbox", time.Now())

	data, err := New().Serialize(event)
	require.NoError(t, err)

	doc := gjson.ParseBytes(data)
	assert.Equal(t, "m1", doc.Get("data.attributes.message-id").String())
	assert.Equal(t, "inbox", doc.Get("data.attributes.source").String())
}

func TestSerializeMessagePatch(t *testing.T) {
	data, err := New().Serialize(domain.Message{ID: "m1", Read: true})
	require.NoError(t, err)

	doc := gjson.ParseBytes(data)
	assert.Equal(t, "messages", doc.Get("data.type").String())
	assert.True(t, doc.Get("data.attributes.read").Bool())
	assert.False(t, doc.Get("data.attributes.saved").Bool())
}

func TestSerializeErrors(t *testing.T) {
	codec := New()

	tests := []struct {
		name  string
		value interface{}
	}{
		{"unsupported type", 42},
		{"unknown kind", domain.Event{ID: "e", Kind: "bogus", Timestamp: time.Now()}},
		{"missing timestamp", domain.Event{ID: "e", Kind: domain.EventKindApplicationOpen}},
		{"location without payload", domain.Event{ID: "e", Kind: domain.EventKindLocationUpdate, Timestamp: time.Now()}},
		{"message without id", domain.Message{}},
		{"nil event", (*domain.Event)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Serialize(tt.value)
			require.Error(t, err)
			var serr *domain.SerializationError
			assert.True(t, errors.As(err, &serr))
		})
	}
}

func TestMapEventCollectsProperties(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "events",
		"id": "e1",
		"attributes": {
			"object": "location",
			"action": "update",
			"timestamp": "2024-03-01T12:00:00Z",
			"latitude": 1.5,
			"place": "downtown"
		}
	}`)

	var event domain.Event
	require.NoError(t, New().Map(raw, &event))

	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, domain.EventKindLocationUpdate, event.Kind)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), event.Timestamp.UTC())
	assert.Equal(t, "downtown", event.Properties["place"])
	assert.Equal(t, 1.5, event.Properties["latitude"])
	assert.NotContains(t, event.Properties, "object")
}

func TestMapRegionsSkipsOtherResources(t *testing.T) {
	raw := json.RawMessage(`[
		{"type": "geofence-regions", "id": "g1", "attributes": {"latitude": 1, "longitude": 2, "radius": 50}},
		{"type": "places", "id": "p1", "attributes": {}},
		{"type": "beacon-regions", "id": "b1", "attributes": {"uuid": "ABC", "major-number": 3, "minor-number": null}}
	]`)

	var regions []domain.Region
	require.NoError(t, New().Map(raw, &regions))
	require.Len(t, regions, 2)

	assert.Equal(t, domain.RegionKindCircular, regions[0].Kind)
	assert.Equal(t, 50.0, regions[0].Radius)
	assert.Equal(t, domain.RegionKindBeacon, regions[1].Kind)
	require.NotNil(t, regions[1].Major)
	assert.Equal(t, 3, *regions[1].Major)
	assert.Nil(t, regions[1].Minor)
}

func TestMapRegionsRejectsInvalidRegion(t *testing.T) {
	raw := json.RawMessage(`[{"type": "geofence-regions", "id": "g1", "attributes": {"radius": 0}}]`)

	var regions []domain.Region
	err := New().Map(raw, &regions)
	var merr *domain.MappingError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "regions", merr.Target)
}

func TestMapMessages(t *testing.T) {
	raw := json.RawMessage(`[
		{"type": "messages", "id": "m1", "attributes": {"title": "Hi", "notification-text": "Hello", "read": true, "action": "landing-page",
			"landing-page": {"title": "Welcome", "rows": [{"blocks": []}]}}},
		{"type": "messages", "id": "m2", "attributes": {"action": "something-new"}}
	]`)

	var messages []domain.Message
	require.NoError(t, New().Map(raw, &messages))
	require.Len(t, messages, 2)

	assert.Equal(t, "Hello", messages[0].Text)
	assert.True(t, messages[0].Read)
	require.NotNil(t, messages[0].LandingPage)
	assert.Equal(t, "Welcome", messages[0].LandingPage.Title)
	assert.Len(t, messages[0].LandingPage.Rows, 1)
	assert.Equal(t, domain.MessageActionNone, messages[1].Action)
}

func TestMapScreen(t *testing.T) {
	raw := json.RawMessage(`{"type": "landing-pages", "id": "s1", "attributes": {"title": "Promo", "rows": []}}`)

	var screen domain.Screen
	require.NoError(t, New().Map(raw, &screen))
	assert.Equal(t, "s1", screen.ID)
	assert.Equal(t, "Promo", screen.Title)
}

func TestMapErrors(t *testing.T) {
	codec := New()

	tests := []struct {
		name   string
		raw    string
		target interface{}
	}{
		{"empty payload", ``, &domain.Event{}},
		{"invalid json", `{"type":`, &domain.Event{}},
		{"wrong resource type", `{"type": "messages", "id": "x"}`, &domain.Event{}},
		{"unknown event", `{"type": "events", "attributes": {"object": "x", "action": "y"}}`, &domain.Event{}},
		{"bad timestamp", `{"type": "events", "attributes": {"object": "app", "action": "open", "timestamp": "yesterday"}}`, &domain.Event{}},
		{"regions not array", `{"type": "geofence-regions"}`, &[]domain.Region{}},
		{"message without id", `{"type": "messages"}`, &domain.Message{}},
		{"unsupported target", `{}`, &struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := codec.Map(json.RawMessage(tt.raw), tt.target)
			var merr *domain.MappingError
			assert.True(t, errors.As(err, &merr), "got %v", err)
		})
	}
}
