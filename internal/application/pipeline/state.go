package pipeline

import (
	"context"
	"time"

	"github.com/aescanero/rover/internal/application/graph"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newState(id string, event domain.Event) *domain.PipelineState {
	state := &domain.PipelineState{
		PipelineID:  id,
		EventID:     event.ID,
		EventKind:   event.Kind,
		Status:      domain.PipelineStatusPending,
		SubmittedAt: time.Now().UTC(),
		NodeStates:  make(map[string]*domain.NodeState, 6),
	}
	for _, nodeID := range []string{NodePrerequisite, NodeSerialize, NodeTransmit, NodeRouteRegions, NodeRouteEvent, NodeFinish} {
		state.NodeStates[nodeID] = &domain.NodeState{NodeID: nodeID, Status: string(graph.StatePending)}
	}
	return state
}

func (i *Instance) nodeStarted(ev graph.NodeEvent) {
	i.mu.Lock()
	ns := i.state.NodeStates[ev.NodeID]
	if graph.State(ns.Status).IsTerminal() {
		// cancelled before its start hook fired
		i.mu.Unlock()
		return
	}
	ns.Status = string(graph.StateRunning)
	started := ev.StartedAt.UTC()
	ns.StartedAt = &started

	first := i.state.Status == domain.PipelineStatusPending
	if first {
		i.state.Status = domain.PipelineStatusRunning
		i.state.StartedAt = &started
	}
	submitted := i.state.SubmittedAt
	i.mu.Unlock()

	if first {
		if i.deps.Metrics != nil {
			i.deps.Metrics.RecordQueueWait(started.Sub(submitted))
		}
		i.record(ports.EventTypePipelineStarted, "", nil)
	}
	i.record(ports.EventTypeNodeStarted, ev.NodeID, nil)
}

func (i *Instance) nodeFinished(ev graph.NodeEvent) {
	i.mu.Lock()
	ns := i.state.NodeStates[ev.NodeID]
	ns.Status = string(ev.State)
	if ev.Err != nil {
		ns.Error = ev.Err.Error()
	}
	completed := ev.CompletedAt.UTC()
	ns.CompletedAt = &completed
	i.mu.Unlock()

	if i.deps.Metrics != nil {
		i.deps.Metrics.RecordNodeExecuted(ev.NodeID, string(ev.State), ev.Duration())
	}

	var data map[string]interface{}
	if ev.Err != nil {
		data = map[string]interface{}{"error": ev.Err.Error()}
		if ev.State == graph.StateFailed {
			i.logger.Warn("pipeline node failed",
				zap.String("node_id", ev.NodeID),
				zap.Error(ev.Err))
		}
	}
	i.record(nodeEventType(ev.State), ev.NodeID, data)

	if ev.NodeID == NodeFinish {
		i.complete(ev)
	}
}

func nodeEventType(s graph.State) ports.EventType {
	switch s {
	case graph.StateCompleted:
		return ports.EventTypeNodeCompleted
	case graph.StateFailed:
		return ports.EventTypeNodeFailed
	default:
		return ports.EventTypeNodeCancelled
	}
}

// complete closes the instance once the finish node is terminal
func (i *Instance) complete(ev graph.NodeEvent) {
	delivered, _ := deliveredSlot.Get(i.exec)
	cancelled := i.exec.Cancelled()

	i.mu.Lock()
	finishedAt := ev.CompletedAt.UTC()
	i.state.FinishedAt = &finishedAt
	i.state.Delivered = delivered
	if i.cancelRequested && cancelled {
		i.state.Status = domain.PipelineStatusCancelled
	} else {
		i.state.Status = domain.PipelineStatusFinished
	}
	i.finished = true
	status := i.state.Status
	ok := i.state.Delivered
	var duration time.Duration
	if i.state.StartedAt != nil {
		duration = finishedAt.Sub(*i.state.StartedAt)
	}
	callbacks := i.onFinish
	i.onFinish = nil
	i.mu.Unlock()

	if i.deps.Metrics != nil {
		i.deps.Metrics.RecordPipelineFinished(string(status), duration)
	}

	eventType := ports.EventTypePipelineFinished
	if status == domain.PipelineStatusCancelled {
		eventType = ports.EventTypePipelineCancelled
	}
	i.record(eventType, "", map[string]interface{}{"delivered": ok})

	if !ok && status == domain.PipelineStatusFinished {
		i.logger.Warn("event dropped",
			zap.String("kind", string(i.event.Kind)),
			zap.Error(i.dropCause()))
	} else {
		i.logger.Debug("pipeline finished",
			zap.String("status", string(status)),
			zap.Bool("delivered", ok),
			zap.Duration("duration", duration))
	}

	for _, fn := range callbacks {
		fn(i)
	}
	close(i.done)
}

// dropCause returns the first node error along the delivery path
func (i *Instance) dropCause() error {
	for _, id := range []string{NodeSerialize, NodeTransmit, NodeRouteEvent} {
		if err := i.exec.Err(id); err != nil {
			return err
		}
	}
	return nil
}

// record saves the current snapshot and publishes a lifecycle event. Calls
// are serialized and the snapshot is taken inside the critical section, so
// the last save always carries the newest state.
func (i *Instance) record(eventType ports.EventType, nodeID string, data map[string]interface{}) {
	if i.deps.Storage == nil && i.deps.Bus == nil {
		return
	}

	i.recordMu.Lock()
	defer i.recordMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if i.deps.Storage != nil {
		if err := i.deps.Storage.SaveState(ctx, i.Snapshot()); err != nil {
			i.logger.Warn("failed to save pipeline state", zap.Error(err))
		}
	}

	if i.deps.Bus != nil {
		event := ports.LifecycleEvent{
			ID:         uuid.New().String(),
			Type:       eventType,
			Timestamp:  time.Now().UTC(),
			PipelineID: i.id,
			NodeID:     nodeID,
			Data:       data,
		}
		if err := i.deps.Bus.Publish(ctx, ports.TopicPipelineEvents, event); err != nil {
			i.logger.Warn("failed to publish lifecycle event",
				zap.String("type", string(eventType)),
				zap.Error(err))
		}
	}
}
