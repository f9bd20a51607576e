package graph

// Slot is a typed reference to a node output. A slot can be handed to other
// nodes before the producing node has run.
type Slot[T any] struct {
	id string
}

// SlotOf returns the slot of the node with the given id.
func SlotOf[T any](id string) Slot[T] {
	return Slot[T]{id: id}
}

// ID returns the producing node id.
func (s Slot[T]) ID() string {
	return s.id
}

// Value reads the slot from a dependent's inputs.
func (s Slot[T]) Value(in *Inputs) (T, bool) {
	var zero T
	v, ok := in.Value(s.id)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Get reads the slot from an executor once the node has completed.
func (s Slot[T]) Get(e *Executor) (T, bool) {
	var zero T
	v, ok := e.Output(s.id)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
