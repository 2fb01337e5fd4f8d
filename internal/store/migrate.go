package store

import (
	"context"
	"database/sql"
)

// Migrate ensures the ledger schema exists. Activities, participants and
// ledger_entries are owned by the wider admin application; they are created
// here too so the service runs standalone in dev.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			required_minor BIGINT,
			currency VARCHAR(3) NOT NULL DEFAULT 'CDF',
			starts_at TIMESTAMPTZ NOT NULL,
			ends_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('child', 'monitor'))
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			activity_id TEXT NOT NULL REFERENCES activities(id),
			participant_id TEXT NOT NULL REFERENCES participants(id),
			status TEXT NOT NULL,
			source TEXT NOT NULL,
			arrived_at TIMESTAMPTZ NOT NULL,
			recorded_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (activity_id, participant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS receipt_counters (
			day_key VARCHAR(8) PRIMARY KEY,
			next_seq BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			receipt_id TEXT PRIMARY KEY,
			activity_id TEXT NOT NULL REFERENCES activities(id),
			participant_id TEXT NOT NULL REFERENCES participants(id),
			amount_minor BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			method TEXT NOT NULL,
			paid_at TIMESTAMPTZ NOT NULL,
			recorded_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_pair ON payments(activity_id, participant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(paid_at)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('income', 'expense')),
			entry_date DATE NOT NULL,
			amount_minor BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			counterparty TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_date ON ledger_entries(entry_date)`,
		`CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
