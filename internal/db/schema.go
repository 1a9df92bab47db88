package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema DDL applied at startup. Idempotent so every process can run it.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	avatar        TEXT,
	role          TEXT NOT NULL DEFAULT 'user',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	last_login    TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS expenses (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL REFERENCES users(id),
	title              TEXT NOT NULL,
	amount_cents       BIGINT NOT NULL CHECK (amount_cents >= 0),
	category           TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	date               TIMESTAMPTZ NOT NULL,
	is_recurring       BOOLEAN NOT NULL DEFAULT FALSE,
	recurring_interval TEXT,
	tags               TEXT[] NOT NULL DEFAULT '{}',
	attachments        JSONB NOT NULL DEFAULT '[]',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS expenses_user_date ON expenses (user_id, date DESC);
CREATE INDEX IF NOT EXISTS expenses_user_category ON expenses (user_id, category);
CREATE INDEX IF NOT EXISTS expenses_recurring ON expenses (date) WHERE is_recurring;
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
