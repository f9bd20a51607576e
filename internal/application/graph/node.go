package graph

import (
	"context"
	"time"
)

// Action is a synchronous node body. Its return value becomes the node output.
type Action func(ctx context.Context, in *Inputs) (interface{}, error)

// AsyncAction starts work and returns without waiting for it. done must be
// called when the work ends; calls after the first are ignored.
type AsyncAction func(ctx context.Context, in *Inputs, done func(output interface{}, err error))

// Node declares one unit of work.
type Node struct {
	ID string

	// Exactly one of Run and RunAsync must be set.
	Run      Action
	RunAsync AsyncAction

	// Requires lists dependencies whose successful output the node needs.
	// When any of them ends without completing, the node is cancelled
	// instead of run.
	Requires []string

	// MustRun nodes still execute after Cancel.
	MustRun bool
}

// Edge declares that To depends on From.
type Edge struct {
	From string
	To   string
}

// NodeSnapshot is a point-in-time view of a node.
type NodeSnapshot struct {
	ID          string
	State       State
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

type taskNode struct {
	spec       Node
	deps       []string
	dependents []string
	requires   []string

	// waiting counts dependencies that are not yet terminal
	waiting int

	state       State
	output      interface{}
	err         error
	startedAt   time.Time
	completedAt time.Time
}

func (n *taskNode) snapshot() NodeSnapshot {
	return NodeSnapshot{
		ID:          n.spec.ID,
		State:       n.state,
		Err:         n.err,
		StartedAt:   n.startedAt,
		CompletedAt: n.completedAt,
	}
}
