// Package postgres owns pool construction and the schema the stores rely on.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables and indexes the invariants depend on: the unique
// normalized email index and the single-active-endorsement partial index.
const Schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id                 UUID PRIMARY KEY,
	name               TEXT NOT NULL,
	slug               TEXT NOT NULL UNIQUE,
	allow_endorsements BOOLEAN NOT NULL DEFAULT TRUE,
	auto_approve       BOOLEAN NOT NULL DEFAULT FALSE,
	published          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stakeholders (
	id                      UUID PRIMARY KEY,
	email                   TEXT NOT NULL,
	name                    TEXT NOT NULL,
	organization            TEXT NOT NULL DEFAULT '',
	stakeholder_type        TEXT NOT NULL,
	street_address          TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	state                   TEXT NOT NULL DEFAULT '',
	zip_code                TEXT NOT NULL DEFAULT '',
	county                  TEXT NOT NULL DEFAULT '',
	latitude                DOUBLE PRECISION,
	longitude               DOUBLE PRECISION,
	geocoded_at             TIMESTAMPTZ,
	geocoding_failed        BOOLEAN NOT NULL DEFAULT FALSE,
	congressional_district  TEXT NOT NULL DEFAULT '',
	state_senate_district   TEXT NOT NULL DEFAULT '',
	state_house_district    TEXT NOT NULL DEFAULT '',
	anonymized              BOOLEAN NOT NULL DEFAULT FALSE,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS stakeholders_email_key
	ON stakeholders (lower(email));

CREATE TABLE IF NOT EXISTS endorsements (
	id               UUID PRIMARY KEY,
	campaign_id      UUID NOT NULL,
	stakeholder_id   UUID NOT NULL REFERENCES stakeholders (id),
	statement        TEXT NOT NULL DEFAULT '',
	public_display   BOOLEAN NOT NULL DEFAULT FALSE,
	terms_accepted   BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL,
	rejection_reason TEXT,
	version          BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS endorsements_active_pair_key
	ON endorsements (stakeholder_id, campaign_id)
	WHERE status <> 'rejected';

CREATE INDEX IF NOT EXISTS endorsements_moderation_idx
	ON endorsements (campaign_id, status, created_at);

CREATE TABLE IF NOT EXISTS verification_tokens (
	id             UUID PRIMARY KEY,
	endorsement_id UUID NOT NULL REFERENCES endorsements (id),
	token_hash     TEXT NOT NULL UNIQUE,
	expires_at     TIMESTAMPTZ NOT NULL,
	consumed_at    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS verification_tokens_endorsement_idx
	ON verification_tokens (endorsement_id);
`

// NewPool connects and verifies the database is reachable.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// EnsureSchema applies the schema idempotently at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
