package orchestrator

import (
	"github.com/aescanero/rover/pkg/domain"
	"github.com/google/uuid"
)

// Observer receives the results of delivered events
type Observer interface {
	OnEventPosted(event domain.Event)
	OnRegionsReceived(regions []domain.Region)
}

// MessageObserver is implemented by observers interested in messages
// delivered through remote notifications
type MessageObserver interface {
	OnMessageReceived(message domain.Message)
}

// MessageOpenDecider is implemented by observers that vote on whether a
// notification message is opened. Every decider must agree.
type MessageOpenDecider interface {
	ShouldOpenMessage(message domain.Message) bool
}

type registration struct {
	id       string
	observer Observer
}

// AddObserver registers o and returns the handle used to remove it
func (m *Manager) AddObserver(o Observer) string {
	id := uuid.New().String()
	m.mu.Lock()
	m.observers = append(m.observers, registration{id: id, observer: o})
	m.mu.Unlock()
	return id
}

// RemoveObserver unregisters an observer. Unknown handles are ignored.
func (m *Manager) RemoveObserver(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.observers {
		if r.id == id {
			m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
			return
		}
	}
}

// snapshot returns the registered observers. Notifications iterate the copy
// so observers may add or remove observers from inside a callback.
func (m *Manager) snapshot() []Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Observer, len(m.observers))
	for i, r := range m.observers {
		out[i] = r.observer
	}
	return out
}

// OnEventPosted fans a delivered event out to observers
func (m *Manager) OnEventPosted(event domain.Event) {
	for _, o := range m.snapshot() {
		o.OnEventPosted(event)
	}
}

// OnRegionsReceived replaces the monitored set and notifies observers
func (m *Manager) OnRegionsReceived(regions []domain.Region) {
	if m.monitor != nil {
		m.monitor.SetMonitoredRegions(regions)
	}
	for _, o := range m.snapshot() {
		o.OnRegionsReceived(regions)
	}
}

func (m *Manager) notifyMessageReceived(message domain.Message) {
	for _, o := range m.snapshot() {
		if mo, ok := o.(MessageObserver); ok {
			mo.OnMessageReceived(message)
		}
	}
}

func (m *Manager) shouldOpenMessage(message domain.Message) bool {
	open := true
	for _, o := range m.snapshot() {
		if d, ok := o.(MessageOpenDecider); ok {
			open = d.ShouldOpenMessage(message) && open
		}
	}
	return open
}
