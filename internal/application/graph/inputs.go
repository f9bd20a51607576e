package graph

// Inputs exposes the terminal dependencies of a running node.
type Inputs struct {
	node      string
	values    map[string]interface{}
	states    map[string]State
	errs      map[string]error
	cancelled bool
}

// Value returns the output of a completed dependency.
// It reports false for failed, cancelled or undeclared dependencies.
func (in *Inputs) Value(id string) (interface{}, bool) {
	if in == nil {
		return nil, false
	}
	v, ok := in.values[id]
	return v, ok
}

// State returns the state a dependency ended in.
func (in *Inputs) State(id string) (State, bool) {
	if in == nil {
		return "", false
	}
	s, ok := in.states[id]
	return s, ok
}

// Err returns the error a dependency ended with.
func (in *Inputs) Err(id string) error {
	if in == nil {
		return nil
	}
	return in.errs[id]
}

// Cancelled reports whether the executor was cancelled before this node ran.
func (in *Inputs) Cancelled() bool {
	return in != nil && in.cancelled
}

// Node returns the id of the node receiving these inputs.
func (in *Inputs) Node() string {
	if in == nil {
		return ""
	}
	return in.node
}
