package memory

import (
	"context"
	"sync"

	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

const defaultBuffer = 256

type subscription struct {
	id      uint64
	topic   string
	handler ports.EventHandler
	ctx     context.Context
	events  chan ports.LifecycleEvent
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// InMemoryEventBus implements EventBus with per-subscriber delivery goroutines.
// Each subscriber receives events in publish order. A subscriber that falls
// more than the buffer size behind drops events.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	buffer      int
	closed      bool
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		subscribers: make(map[string]map[uint64]*subscription),
		buffer:      defaultBuffer,
		logger:      logger,
	}
}

// Publish publishes an event to all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event ports.LifecycleEvent) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil
	}

	for _, sub := range e.subscribers[topic] {
		select {
		case sub.events <- event:
		case <-sub.done:
		default:
			e.logger.Warn("subscriber buffer full, dropping event",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)))
		}
	}
	return nil
}

// Subscribe registers handler for topic until ctx is cancelled or the topic
// is unsubscribed
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.nextID++
	sub := &subscription{
		id:      e.nextID,
		topic:   topic,
		handler: handler,
		ctx:     ctx,
		events:  make(chan ports.LifecycleEvent, e.buffer),
		done:    make(chan struct{}),
	}
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	e.subscribers[topic][sub.id] = sub

	e.wg.Add(1)
	go e.deliver(sub)
	return nil
}

func (e *InMemoryEventBus) deliver(sub *subscription) {
	defer e.wg.Done()
	defer e.remove(sub)

	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-sub.done:
			return
		case event := <-sub.events:
			if err := sub.handler(sub.ctx, event); err != nil {
				e.logger.Debug("handler error",
					zap.String("topic", sub.topic),
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
		}
	}
}

// Unsubscribe removes all subscriptions from a topic
func (e *InMemoryEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	subs := e.subscribers[topic]
	delete(e.subscribers, topic)
	e.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

// Close stops every subscription and waits for in-flight handlers
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	e.closed = true
	all := e.subscribers
	e.subscribers = make(map[string]map[uint64]*subscription)
	e.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.stop()
		}
	}
	e.wg.Wait()
	return nil
}

func (e *InMemoryEventBus) remove(sub *subscription) {
	sub.stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	if subs, ok := e.subscribers[sub.topic]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(e.subscribers, sub.topic)
		}
	}
}
