package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS users (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name        TEXT NOT NULL,
		username    TEXT NOT NULL UNIQUE,
		email       TEXT NOT NULL UNIQUE,
		password    TEXT NOT NULL,
		tier        TEXT NOT NULL DEFAULT 'FREE',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		creator_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		type           TEXT NOT NULL,
		start_date     TIMESTAMPTZ NOT NULL,
		end_date       TIMESTAMPTZ NOT NULL,
		timezone       TEXT NOT NULL DEFAULT 'UTC',
		location       TEXT,
		virtual_link   TEXT,
		is_public      BOOLEAN NOT NULL DEFAULT TRUE,
		access         TEXT NOT NULL DEFAULT 'PUBLIC',
		price_cents    BIGINT,
		required_tier  TEXT,
		tags           TEXT[] NOT NULL DEFAULT '{}',
		status         TEXT NOT NULL DEFAULT 'PUBLISHED',
		slug           TEXT NOT NULL UNIQUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT events_start_before_end CHECK (start_date < end_date)
	)`,
	`CREATE INDEX IF NOT EXISTS events_start_date_idx ON events (start_date)`,
	`CREATE INDEX IF NOT EXISTS events_creator_idx ON events (creator_id, start_date)`,

	`CREATE TABLE IF NOT EXISTS recurrence_rules (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		event_id         UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		frequency        TEXT NOT NULL,
		repeat_interval  INTEGER NOT NULL DEFAULT 1 CHECK (repeat_interval > 0),
		count            INTEGER CHECK (count > 0),
		until            TIMESTAMPTZ,
		by_weekday       TEXT[],
		by_month_day     INTEGER,
		by_set_pos       INTEGER,
		lunar_phase      TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT recurrence_single_termination CHECK (count IS NULL OR until IS NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS recurrence_rules_event_idx ON recurrence_rules (event_id)`,

	`CREATE TABLE IF NOT EXISTS event_registrations (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		event_id    UUID NOT NULL REFERENCES events(id),
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status      TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (event_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_integrations (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id        UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		provider       TEXT NOT NULL,
		access_token   TEXT NOT NULL,
		refresh_token  TEXT NOT NULL DEFAULT '',
		token_expiry   TIMESTAMPTZ NOT NULL,
		sync_enabled   BOOLEAN NOT NULL DEFAULT TRUE,
		settings       JSONB NOT NULL DEFAULT '{}',
		last_sync_at   TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, provider)
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_sync_events (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		integration_id  UUID NOT NULL REFERENCES calendar_integrations(id) ON DELETE CASCADE,
		event_id        UUID REFERENCES events(id) ON DELETE SET NULL,
		external_id     TEXT,
		operation       TEXT NOT NULL,
		direction       TEXT NOT NULL,
		status          TEXT NOT NULL,
		error           TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS calendar_sync_events_remote_mapping
		ON calendar_sync_events (integration_id, external_id)
		WHERE operation = 'CREATE' AND status = 'SYNCED'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS calendar_sync_events_local_mapping
		ON calendar_sync_events (integration_id, event_id)
		WHERE operation = 'CREATE' AND status = 'SYNCED'`,
	`CREATE INDEX IF NOT EXISTS calendar_sync_events_recent
		ON calendar_sync_events (integration_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS calendar_conflicts (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		integration_id   UUID NOT NULL REFERENCES calendar_integrations(id) ON DELETE CASCADE,
		event_id         UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		external_id      TEXT NOT NULL,
		local_snapshot   JSONB NOT NULL,
		remote_snapshot  JSONB NOT NULL,
		detected_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at      TIMESTAMPTZ,
		resolution       TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS calendar_conflicts_open
		ON calendar_conflicts (integration_id) WHERE resolved_at IS NULL`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
