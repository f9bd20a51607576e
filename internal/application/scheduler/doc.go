// Package scheduler implements the two submission lanes.
//
// The ordered lane runs one pipeline instance at a time in submission order.
// An instance is started only after the finish node of the previous one is
// terminal. The unordered lane hands independent tasks to a worker pool with
// no ordering between them.
package scheduler
