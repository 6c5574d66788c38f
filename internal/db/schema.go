package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS auth_nonces (
		address TEXT PRIMARY KEY,
		nonce TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pinned_objects (
		id TEXT PRIMARY KEY,
		uri TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS minted_walks (
		token_id BIGINT PRIMARY KEY,
		owner TEXT NOT NULL,
		tx_id TEXT NOT NULL,
		metadata_uri TEXT NOT NULL,
		image_uri TEXT NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL,
		points BIGINT NOT NULL,
		duration_seconds BIGINT NOT NULL,
		level TEXT NOT NULL,
		minted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS minted_walks_owner_idx ON minted_walks (owner)`,
}

// EnsureSchema creates the tables the API writes to when they do not exist yet.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
