// Package graph implements the dependency graph executor that drives a
// pipeline instance.
//
// A graph is built once from a node set and an edge set. Build rejects
// unknown node references and cycles. Nothing runs until Start releases the
// gate, so callers may finish wiring closures that reference other nodes'
// outputs through typed slots. Readiness is recomputed on every state change:
// a node becomes ready when all of its dependencies are terminal, whatever
// their outcome. Cancel stops scheduling, marks unfinished nodes cancelled and
// still runs nodes flagged MustRun.
package graph
