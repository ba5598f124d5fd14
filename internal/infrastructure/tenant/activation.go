// Package tenant provides idempotent schema creation for tenant databases.
package tenant

import "fmt"

// trackerTableDefinitions holds the CREATE TABLE statements for the tracker
// schema. All statements are idempotent so activation can run on every boot.
var trackerTableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS visitors (
		id TEXT PRIMARY KEY,
		visitor_token TEXT NOT NULL UNIQUE,
		custom_label TEXT NOT NULL DEFAULT '',
		first_seen_at TEXT NOT NULL,
		last_seen_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		session_token TEXT NOT NULL UNIQUE,
		visitor_id TEXT REFERENCES visitors(id),
		started_at TEXT NOT NULL,
		last_active_at TEXT NOT NULL,
		ended_at TEXT,
		user_agent TEXT NOT NULL DEFAULT '',
		device TEXT NOT NULL DEFAULT '',
		ip_hint TEXT NOT NULL DEFAULT '',
		is_vip INTEGER NOT NULL DEFAULT 0,
		admin_notes TEXT NOT NULL DEFAULT '',
		peak_value TEXT NOT NULL DEFAULT '0',
		peak_items INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS cart_snapshots (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		items TEXT NOT NULL DEFAULT '[]',
		total_value TEXT NOT NULL DEFAULT '0',
		items_count INTEGER NOT NULL DEFAULT 0,
		action TEXT NOT NULL,
		taken_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS abandoned_carts (
		id TEXT PRIMARY KEY,
		checkout_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		cart_url TEXT NOT NULL DEFAULT '',
		total_value TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT '',
		items TEXT NOT NULL DEFAULT '[]',
		items_count INTEGER NOT NULL DEFAULT 0,
		is_recovered INTEGER NOT NULL DEFAULT 0,
		recovery_sent INTEGER NOT NULL DEFAULT 0,
		recovery_attempts INTEGER NOT NULL DEFAULT 0,
		last_attempt_at TEXT,
		expired_at TEXT,
		coupon_code TEXT NOT NULL DEFAULT '',
		coupon_value INTEGER NOT NULL DEFAULT 0,
		coupon_expires_at TEXT,
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_enriched_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_last_active
		ON sessions(last_active_at) WHERE ended_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_session
		ON cart_snapshots(session_id, taken_at)`,
	`CREATE INDEX IF NOT EXISTS idx_carts_recovery_scan
		ON abandoned_carts(updated_at)
		WHERE is_recovered = 0 AND recovery_sent = 0 AND expired_at IS NULL`,
}

// CreateTrackerTables creates the tracker schema in the tenant's database.
func CreateTrackerTables(ctx *Context) error {
	for _, stmt := range trackerTableDefinitions {
		if _, err := ctx.Database.Conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
