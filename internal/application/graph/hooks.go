package graph

import "time"

// NodeEvent describes a node transition.
type NodeEvent struct {
	ExecutorID  string
	NodeID      string
	State       State
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration returns the run time of a finished node, zero if it never ran.
func (e NodeEvent) Duration() time.Duration {
	if e.StartedAt.IsZero() || e.CompletedAt.IsZero() {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// HookFunc receives node transitions. Hooks run outside the executor lock.
type HookFunc func(NodeEvent)

// Hooks groups optional transition callbacks.
type Hooks struct {
	// OnStart fires when a node enters Running.
	OnStart HookFunc
	// OnFinish fires once per node when it becomes terminal.
	OnFinish HookFunc
}

// Merge combines two hook sets, running the receiver first.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnStart:  chainHooks(h.OnStart, other.OnStart),
		OnFinish: chainHooks(h.OnFinish, other.OnFinish),
	}
}

func chainHooks(first, second HookFunc) HookFunc {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	default:
		return func(event NodeEvent) {
			first(event)
			second(event)
		}
	}
}
