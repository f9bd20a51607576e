// Package prometheus records orchestration metrics with the Prometheus client.
package prometheus
