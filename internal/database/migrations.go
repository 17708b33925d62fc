package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`ALTER TABLE users ADD COLUMN IF NOT EXISTS tier TEXT NOT NULL DEFAULT 'basic'`,

		`CREATE TABLE IF NOT EXISTS beneficiaries (
			id TEXT PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			destination_city TEXT NOT NULL DEFAULT '',
			destination_country TEXT NOT NULL,
			preferred_service_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_beneficiaries_owner_id ON beneficiaries(owner_id)`,

		`CREATE TABLE IF NOT EXISTS payment_instruments (
			id TEXT PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			last4 CHAR(4) NOT NULL,
			brand TEXT NOT NULL,
			holder_name TEXT NOT NULL,
			expiry TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_instruments_owner_id ON payment_instruments(owner_id)`,

		`CREATE TABLE IF NOT EXISTS usage_archive (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			period TEXT NOT NULL,
			period_start TIMESTAMPTZ NOT NULL,
			amount DECIMAL(14, 2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'EUR',
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, period, period_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_archive_user_id ON usage_archive(user_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
