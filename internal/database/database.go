package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the pgx connection pool shared by all repositories
type DB struct {
	Pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS definition (
	id                 BIGSERIAL PRIMARY KEY,
	kind               TEXT NOT NULL CHECK (kind IN ('portfolio', 'nexus')),
	code               TEXT NOT NULL,
	owner              BIGINT NOT NULL,
	amplification      DOUBLE PRECISION NOT NULL DEFAULT 0,
	draft              BOOLEAN NOT NULL DEFAULT FALSE,
	components         JSONB NOT NULL,
	connected_commands JSONB NOT NULL DEFAULT '[]'::jsonb,
	created            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (kind, code)
);
CREATE INDEX IF NOT EXISTS definition_owner_idx ON definition (owner);
CREATE TABLE IF NOT EXISTS quote_cache (
	symbol         TEXT PRIMARY KEY,
	price          NUMERIC NOT NULL,
	change_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	fetched_at     TIMESTAMPTZ NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL
);
`

// New connects to Postgres, verifies the connection and ensures the schema exists
func New(ctx context.Context, pgURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, pgURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases all pooled connections
func (db *DB) Close() {
	db.Pool.Close()
}
