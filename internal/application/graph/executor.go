package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// now is overridden in tests to provide deterministic timings.
var now = time.Now

var executorCounter atomic.Uint64

// Option configures an executor.
type Option func(*options)

type options struct {
	id         string
	dispatcher Dispatcher
	hooks      Hooks
	logger     *zap.Logger
}

// WithID sets the executor id used in logs and node events.
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

// WithDispatcher supplies the worker pool that runs ready nodes.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) {
		if d != nil {
			o.dispatcher = d
		}
	}
}

// WithHooks registers transition hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(h)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Executor runs one built graph.
type Executor struct {
	id         string
	nodes      map[string]*taskNode
	order      []*taskNode
	dispatcher Dispatcher
	hooks      Hooks
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	cancelled bool
	remaining int
	// hook deliveries queued but not yet returned
	inflight int
	closed   bool
	done     chan struct{}
}

// Build validates the graph and returns a suspended executor bound to it.
// Construction errors wrap ErrCycleDetected, ErrUnknownNode, ErrDuplicateNode,
// ErrInvalidNode or ErrEmptyGraph.
func Build(nodes []Node, edges []Edge, opts ...Option) (*Executor, error) {
	a, err := analyze(nodes, edges)
	if err != nil {
		return nil, err
	}

	o := options{
		id:         fmt.Sprintf("graph-%d", executorCounter.Add(1)),
		dispatcher: GoDispatcher{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		id:         o.id,
		nodes:      a.nodes,
		order:      a.order,
		dispatcher: o.dispatcher,
		hooks:      o.hooks,
		logger:     o.logger.With(zap.String("executor_id", o.id)),
		ctx:        ctx,
		cancel:     cancel,
		remaining:  len(a.order),
		done:       make(chan struct{}),
	}, nil
}

// ID returns the executor id.
func (e *Executor) ID() string {
	return e.id
}

// Start releases the suspend gate. Calls after the first, or after Cancel,
// have no effect.
func (e *Executor) Start() {
	e.mu.Lock()
	if e.started || e.cancelled {
		e.mu.Unlock()
		return
	}
	e.started = true

	var ready []*taskNode
	for _, n := range e.order {
		if n.state == StatePending && n.waiting == 0 {
			n.state = StateReady
			ready = append(ready, n)
		}
	}
	e.mu.Unlock()

	e.logger.Debug("executor started", zap.Int("ready", len(ready)))
	e.dispatch(ready)
}

// Cancel marks every non-terminal node cancelled and stops scheduling.
// MustRun nodes still execute once their dependencies are terminal, even if
// Start was never called. Cancel is a no-op once the graph is finished or
// already cancelled.
func (e *Executor) Cancel() {
	e.mu.Lock()
	if e.cancelled || e.remaining == 0 {
		e.mu.Unlock()
		return
	}
	e.cancelled = true

	var finished []NodeEvent
	for _, n := range e.order {
		if n.state.IsTerminal() || n.spec.MustRun {
			continue
		}
		n.state = StateCancelled
		n.err = ErrCancelled
		n.completedAt = now()
		e.remaining--
		finished = append(finished, e.eventFor(n))
	}
	e.inflight += len(finished)

	var ready []*taskNode
	for _, n := range e.order {
		if !n.spec.MustRun || n.state != StatePending {
			continue
		}
		n.waiting = 0
		for _, dep := range n.deps {
			if !e.nodes[dep].state.IsTerminal() {
				n.waiting++
			}
		}
		if n.waiting == 0 {
			n.state = StateReady
			ready = append(ready, n)
		}
	}
	e.mu.Unlock()

	e.cancel()
	e.logger.Debug("executor cancelled",
		zap.Int("cancelled_nodes", len(finished)),
		zap.Int("finalizers", len(ready)))

	e.fireAll(e.hooks.OnFinish, finished)
	e.dispatch(ready)
}

// Done is closed once every node is terminal and every hook fired for the
// graph has returned.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until Done is closed or ctx ends.
func (e *Executor) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Started reports whether Start was called.
func (e *Executor) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Cancelled reports whether Cancel took effect.
func (e *Executor) Cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// State returns the state of a node.
func (e *Executor) State(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		return "", false
	}
	return n.state, true
}

// Output returns the output of a completed node.
func (e *Executor) Output(id string) (interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok || n.state != StateCompleted {
		return nil, false
	}
	return n.output, true
}

// Err returns the error a node ended with.
func (e *Executor) Err(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, ok := e.nodes[id]; ok {
		return n.err
	}
	return nil
}

// Snapshot returns every node in declaration order.
func (e *Executor) Snapshot() []NodeSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]NodeSnapshot, 0, len(e.order))
	for _, n := range e.order {
		out = append(out, n.snapshot())
	}
	return out
}

func (e *Executor) dispatch(ready []*taskNode) {
	for _, n := range ready {
		node := n
		e.dispatcher.Submit(func() {
			e.execute(node)
		})
	}
}

func (e *Executor) execute(n *taskNode) {
	e.mu.Lock()
	if n.state != StateReady {
		// cancelled between dispatch and execution
		e.mu.Unlock()
		return
	}
	n.state = StateRunning
	n.startedAt = now()
	in := e.inputsFor(n)
	ctx := e.ctx
	if n.spec.MustRun {
		ctx = context.WithoutCancel(ctx)
	}
	started := e.eventFor(n)
	e.inflight++
	e.mu.Unlock()

	e.fireAll(e.hooks.OnStart, []NodeEvent{started})

	if n.spec.RunAsync != nil {
		var once sync.Once
		done := func(out interface{}, err error) {
			once.Do(func() { e.complete(n, out, err) })
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					done(nil, PanicError{NodeID: n.spec.ID, Value: r})
				}
			}()
			n.spec.RunAsync(ctx, in, done)
		}()
		return
	}

	var (
		out interface{}
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = PanicError{NodeID: n.spec.ID, Value: r}
			}
		}()
		out, err = n.spec.Run(ctx, in)
	}()
	e.complete(n, out, err)
}

func (e *Executor) complete(n *taskNode, out interface{}, err error) {
	e.mu.Lock()
	if n.state != StateRunning {
		e.mu.Unlock()
		e.logger.Debug("discarding result of cancelled node", zap.String("node_id", n.spec.ID))
		return
	}
	n.completedAt = now()
	if err != nil {
		n.state = StateFailed
		n.err = err
	} else {
		n.state = StateCompleted
		n.output = out
	}
	var finished []NodeEvent
	ready := e.settle(n, &finished)
	e.inflight += len(finished)
	e.mu.Unlock()

	if err != nil {
		e.logger.Debug("node failed", zap.String("node_id", n.spec.ID), zap.Error(err))
	}
	e.fireAll(e.hooks.OnFinish, finished)
	e.dispatch(ready)
}

// settle records n as terminal and promotes dependents whose dependencies
// are now all terminal. Caller holds e.mu.
func (e *Executor) settle(n *taskNode, finished *[]NodeEvent) []*taskNode {
	e.remaining--
	*finished = append(*finished, e.eventFor(n))

	var ready []*taskNode
	for _, id := range n.dependents {
		d := e.nodes[id]
		if d.state != StatePending {
			continue
		}
		d.waiting--
		if d.waiting > 0 {
			continue
		}
		if unmet := e.unmetRequirement(d); unmet != "" {
			d.state = StateCancelled
			d.err = fmt.Errorf("%w: %s", ErrRequirementUnmet, unmet)
			d.completedAt = now()
			ready = append(ready, e.settle(d, finished)...)
			continue
		}
		d.state = StateReady
		ready = append(ready, d)
	}
	return ready
}

func (e *Executor) unmetRequirement(n *taskNode) string {
	for _, id := range n.requires {
		if e.nodes[id].state != StateCompleted {
			return id
		}
	}
	return ""
}

func (e *Executor) inputsFor(n *taskNode) *Inputs {
	in := &Inputs{
		node:      n.spec.ID,
		values:    make(map[string]interface{}, len(n.deps)),
		states:    make(map[string]State, len(n.deps)),
		errs:      make(map[string]error, len(n.deps)),
		cancelled: e.cancelled,
	}
	for _, id := range n.deps {
		dep := e.nodes[id]
		in.states[id] = dep.state
		switch dep.state {
		case StateCompleted:
			in.values[id] = dep.output
		case StateFailed, StateCancelled:
			in.errs[id] = dep.err
		}
	}
	return in
}

// fireAll delivers events counted in e.inflight and closes done when they
// were the last outstanding hooks of a finished graph.
func (e *Executor) fireAll(hook HookFunc, events []NodeEvent) {
	for _, ev := range events {
		e.fire(hook, ev)
	}

	e.mu.Lock()
	e.inflight -= len(events)
	closing := !e.closed && e.remaining == 0 && e.inflight == 0
	if closing {
		e.closed = true
	}
	e.mu.Unlock()

	if closing {
		close(e.done)
		e.cancel()
	}
}

func (e *Executor) eventFor(n *taskNode) NodeEvent {
	return NodeEvent{
		ExecutorID:  e.id,
		NodeID:      n.spec.ID,
		State:       n.state,
		Err:         n.err,
		StartedAt:   n.startedAt,
		CompletedAt: n.completedAt,
	}
}

func (e *Executor) fire(hook HookFunc, event NodeEvent) {
	if hook != nil {
		hook(event)
	}
}
