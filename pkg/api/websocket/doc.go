// Package websocket provides real-time pipeline lifecycle streaming via
// WebSocket.
//
// Clients connect to /api/v1/pipelines/ws to receive every lifecycle event,
// or add ?pipeline_id=<id> to follow a single pipeline.
package websocket
