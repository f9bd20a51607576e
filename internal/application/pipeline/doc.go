// Package pipeline builds the event submission graph.
//
// Each submitted event gets its own Instance: a suspended graph executor
// wired as
//
//	prerequisite -> serialize -> transmit -> route-regions -> finish
//	                                      -> route-event   ->
//
// Transmit requires the serialized payload and is cancelled when
// serialization fails. The routers always become terminal once transmit is,
// and only notify the Observer when they have something to report. Finish
// waits on both routers regardless of their outcome and runs even when the
// instance is cancelled, so the ordered lane is always released.
//
// Every node transition is recorded in a domain.PipelineState snapshot that
// is written to the configured StateStorage, published on the lifecycle bus
// and reflected in metrics.
package pipeline
