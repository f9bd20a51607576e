// Package http provides the HTTP transport used by pipeline nodes to reach
// the Rover backend API.
//
// Every request carries the application token in the X-Rover-Api-Key header
// and uses the JSON:API media type. Responses outside the 2xx range and
// network failures are reported as *domain.TransportError.
package http
