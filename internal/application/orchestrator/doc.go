// Package orchestrator implements the Manager, the single context object
// through which events are tracked and backend requests are made.
//
// The manager:
//   - Validates events and submits them to the ordered lane
//   - Runs inbox, message and notification requests on the unordered lane
//   - Fans pipeline results out to registered observers
//   - Replaces the monitored region set with regions returned by the backend
//   - Answers status queries from live instances or state storage
package orchestrator
