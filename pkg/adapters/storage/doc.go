// Package storage provides pipeline snapshot and device state storage.
//
// Implementations:
//   - redis: JSON documents with TTL
//   - postgres: JSONB rows through a pgx connection pool
//   - memory: in-process maps, the default for single node deployments
//
// Snapshots are observational. Nothing reads them back to resume work.
package storage
