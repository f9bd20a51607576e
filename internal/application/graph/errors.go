package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycleDetected indicates the edge set contains a cycle or a self dependency.
	ErrCycleDetected = errors.New("graph: cycle detected")
	// ErrUnknownNode indicates an edge or requirement references an undeclared node.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrDuplicateNode indicates two nodes share an id.
	ErrDuplicateNode = errors.New("graph: duplicate node")
	// ErrInvalidNode indicates a node without id or action.
	ErrInvalidNode = errors.New("graph: invalid node")
	// ErrEmptyGraph indicates Build was called without nodes.
	ErrEmptyGraph = errors.New("graph: no nodes")
	// ErrRequirementUnmet is recorded on a node cancelled because a required
	// dependency did not complete.
	ErrRequirementUnmet = errors.New("graph: required dependency did not complete")
	// ErrCancelled is recorded on nodes cancelled by Cancel.
	ErrCancelled = errors.New("graph: cancelled")
)

// GraphError wraps graph construction failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func graphErrorf(kind error, format string, args ...interface{}) error {
	return &GraphError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(ids []string) error {
	return &GraphError{Kind: ErrCycleDetected, Msg: "unresolved nodes: " + strings.Join(ids, ", ")}
}

// PanicError wraps a panic recovered from a node action.
type PanicError struct {
	NodeID string
	Value  interface{}
}

func (e PanicError) Error() string {
	return fmt.Sprintf("graph: panic in node %s: %v", e.NodeID, e.Value)
}
