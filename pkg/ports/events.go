package ports

import (
	"context"
	"time"
)

// EventType is the type of a lifecycle event
type EventType string

const (
	EventTypePipelineSubmitted EventType = "pipeline.submitted"
	EventTypePipelineStarted   EventType = "pipeline.started"
	EventTypePipelineFinished  EventType = "pipeline.finished"
	EventTypePipelineCancelled EventType = "pipeline.cancelled"
	EventTypeNodeStarted       EventType = "node.started"
	EventTypeNodeCompleted     EventType = "node.completed"
	EventTypeNodeFailed        EventType = "node.failed"
	EventTypeNodeCancelled     EventType = "node.cancelled"
)

// TopicPipelineEvents carries every pipeline and node lifecycle event
const TopicPipelineEvents = "pipeline.events"

// LifecycleEvent describes progress of a pipeline instance
type LifecycleEvent struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	PipelineID string                 `json:"pipeline_id"`
	NodeID     string                 `json:"node_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// EventHandler handles a lifecycle event
type EventHandler func(ctx context.Context, event LifecycleEvent) error

// EventBus publishes and subscribes to lifecycle events
type EventBus interface {
	Publish(ctx context.Context, topic string, event LifecycleEvent) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
