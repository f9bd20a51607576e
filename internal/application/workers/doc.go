// Package workers implements the fixed-size worker pools that execute graph
// nodes and independent tasks.
//
// A pool manages a fixed number of goroutines that:
//   - Take submitted functions from an unbounded FIFO queue
//   - Report idle/busy/stopped status
//   - Drain or abandon queued work on shutdown
//
// The health monitor periodically logs pool status and records metrics.
package workers
