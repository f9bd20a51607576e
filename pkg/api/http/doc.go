// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Event submission and pipeline queries
//   - Inbox, landing pages and message tracking
//   - Push tokens, remote notifications and region monitoring
//   - Health checks
//   - Prometheus metrics
package http
