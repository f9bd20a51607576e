// Package grpc serves the standard grpc.health.v1 service for the Rover
// event service.
package grpc
