package graph

// Dispatcher runs submitted functions. Submit must not block on the
// completion of previously submitted functions.
type Dispatcher interface {
	Submit(fn func())
}

// GoDispatcher runs every submitted function on its own goroutine.
type GoDispatcher struct{}

// Submit starts fn on a new goroutine.
func (GoDispatcher) Submit(fn func()) {
	go fn()
}
