package migrations

// Schema for the local store. Mirrors what the browser build kept in
// localStorage: the per-user notification list and per-instance settings.
const initialSchema = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	payload TEXT,
	is_read INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, key)
);
`

// GetInitialSchema returns the DDL applied on startup. Statements are
// idempotent so reapplying on every boot is safe.
func GetInitialSchema() string {
	return initialSchema
}
