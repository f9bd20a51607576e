// Package events provides lifecycle event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: in-process fan-out, used by single node deployments and tests
//
// Both deliver events to a subscriber in publish order.
package events
