package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/rover/internal/application/graph"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

var (
	payloadSlot   = graph.SlotOf[[]byte](NodeSerialize)
	responseSlot  = graph.SlotOf[domain.Envelope](NodeTransmit)
	echoSlot      = graph.SlotOf[domain.Event](NodeRouteEvent)
	deliveredSlot = graph.SlotOf[bool](NodeFinish)
)

var edges = []graph.Edge{
	{From: NodePrerequisite, To: NodeSerialize},
	{From: NodeSerialize, To: NodeTransmit},
	{From: NodeTransmit, To: NodeRouteRegions},
	{From: NodeTransmit, To: NodeRouteEvent},
	{From: NodeRouteRegions, To: NodeFinish},
	{From: NodeRouteEvent, To: NodeFinish},
}

func (i *Instance) nodes() []graph.Node {
	return []graph.Node{
		{ID: NodePrerequisite, Run: i.checkCapabilities},
		{ID: NodeSerialize, Run: i.serialize},
		{ID: NodeTransmit, RunAsync: i.transmit, Requires: []string{NodeSerialize}},
		{ID: NodeRouteRegions, Run: i.routeRegions},
		{ID: NodeRouteEvent, Run: i.routeEvent},
		{ID: NodeFinish, Run: i.finish, MustRun: true},
	}
}

// checkCapabilities persists the Bluetooth reading. Failures are advisory.
func (i *Instance) checkCapabilities(ctx context.Context, _ *graph.Inputs) (interface{}, error) {
	if i.deps.Probe == nil {
		return nil, nil
	}
	on, err := i.deps.Probe.BluetoothEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("capability check failed: %w", err)
	}
	status := domain.DeviceStatus{BluetoothOn: on, Timestamp: time.Now().UTC()}
	if i.deps.Devices != nil {
		if err := i.deps.Devices.SaveStatus(ctx, status); err != nil {
			return nil, fmt.Errorf("failed to persist device status: %w", err)
		}
	}
	return status, nil
}

func (i *Instance) serialize(_ context.Context, _ *graph.Inputs) (interface{}, error) {
	payload, err := i.deps.Serializer.Serialize(i.event)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (i *Instance) transmit(ctx context.Context, in *graph.Inputs, done func(interface{}, error)) {
	payload, ok := payloadSlot.Value(in)
	if !ok {
		done(nil, &domain.SerializationError{Err: fmt.Errorf("no payload")})
		return
	}
	go func() {
		env, err := i.deps.Transport.Send(ctx, ports.Request{
			Method: http.MethodPost,
			Path:   EventsPath,
			Body:   payload,
		})
		if err != nil {
			done(nil, err)
			return
		}
		done(env, nil)
	}()
}

// routeRegions maps the included resources. It is a no-op when transmit did
// not complete or nothing was included.
func (i *Instance) routeRegions(_ context.Context, in *graph.Inputs) (interface{}, error) {
	env, ok := responseSlot.Value(in)
	if !ok {
		return nil, nil
	}
	included, ok := env.Included()
	if !ok {
		return nil, nil
	}

	var regions []domain.Region
	if err := i.deps.Mapper.Map(included, &regions); err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, nil
	}

	i.logger.Debug("regions received", zap.Int("count", len(regions)))
	if i.deps.Metrics != nil {
		i.deps.Metrics.RecordRegionsReceived(len(regions))
	}
	if i.deps.Observer != nil {
		i.deps.Observer.OnRegionsReceived(regions)
	}
	return regions, nil
}

// routeEvent maps the echoed event and merges the submitted properties into
// it. Properties returned by the backend take precedence.
func (i *Instance) routeEvent(_ context.Context, in *graph.Inputs) (interface{}, error) {
	env, ok := responseSlot.Value(in)
	if !ok {
		return nil, nil
	}
	primary, ok := env.Primary()
	if !ok {
		return nil, &domain.MappingError{Target: "event", Err: fmt.Errorf("response has no primary data")}
	}

	var echoed domain.Event
	if err := i.deps.Mapper.Map(primary, &echoed); err != nil {
		return nil, err
	}
	echoed = mergeEcho(i.event, echoed)

	if i.deps.Metrics != nil {
		i.deps.Metrics.RecordEventPosted(string(echoed.Kind))
	}
	if i.deps.Observer != nil {
		i.deps.Observer.OnEventPosted(echoed)
	}
	return echoed, nil
}

func mergeEcho(submitted, echoed domain.Event) domain.Event {
	if echoed.ID == "" {
		echoed.ID = submitted.ID
	}
	if echoed.Timestamp.IsZero() {
		echoed.Timestamp = submitted.Timestamp
	}
	if echoed.Location == nil {
		echoed.Location = submitted.Location
	}
	if echoed.Region == nil {
		echoed.Region = submitted.Region
	}
	if echoed.Message == nil {
		echoed.Message = submitted.Message
	}
	if echoed.Source == "" {
		echoed.Source = submitted.Source
	}

	if len(submitted.Properties) > 0 {
		merged := make(map[string]interface{}, len(submitted.Properties)+len(echoed.Properties))
		for k, v := range submitted.Properties {
			merged[k] = v
		}
		for k, v := range echoed.Properties {
			merged[k] = v
		}
		echoed.Properties = merged
	}
	return echoed
}

// finish reports whether the event was delivered
func (i *Instance) finish(_ context.Context, in *graph.Inputs) (interface{}, error) {
	_, delivered := echoSlot.Value(in)
	return delivered, nil
}
