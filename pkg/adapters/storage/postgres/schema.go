package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rover_pipelines (
    id           TEXT PRIMARY KEY,
    data         JSONB NOT NULL DEFAULT '{}',
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rover_device (
    key   TEXT PRIMARY KEY,
    value JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rover_pipelines_submitted ON rover_pipelines(submitted_at);
`

// CreateSchema creates the rover_pipelines and rover_device tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the rover tables.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS rover_pipelines, rover_device;`)
	return err
}
