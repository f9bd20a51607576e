package domain

import "time"

// PipelineStatus is the aggregate status of a pipeline instance
type PipelineStatus string

const (
	PipelineStatusPending   PipelineStatus = "pending"
	PipelineStatusRunning   PipelineStatus = "running"
	PipelineStatusFinished  PipelineStatus = "finished"
	PipelineStatusCancelled PipelineStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible
func (s PipelineStatus) IsTerminal() bool {
	return s == PipelineStatusFinished || s == PipelineStatusCancelled
}

// NodeState is the recorded state of one node
type NodeState struct {
	NodeID      string     `json:"node_id"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PipelineState is an observational snapshot of a pipeline instance
type PipelineState struct {
	PipelineID  string                `json:"pipeline_id"`
	EventID     string                `json:"event_id"`
	EventKind   EventKind             `json:"event_kind"`
	Status      PipelineStatus        `json:"status"`
	Delivered   bool                  `json:"delivered"`
	NodeStates  map[string]*NodeState `json:"node_states"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the snapshot
func (s *PipelineState) Clone() *PipelineState {
	if s == nil {
		return nil
	}
	out := *s
	out.StartedAt = cloneTime(s.StartedAt)
	out.FinishedAt = cloneTime(s.FinishedAt)
	out.NodeStates = make(map[string]*NodeState, len(s.NodeStates))
	for id, ns := range s.NodeStates {
		if ns == nil {
			continue
		}
		cp := *ns
		cp.StartedAt = cloneTime(ns.StartedAt)
		cp.CompletedAt = cloneTime(ns.CompletedAt)
		out.NodeStates[id] = &cp
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
