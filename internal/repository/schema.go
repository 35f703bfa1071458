package repository

// Schema definitions for the Kestrel audit trail.
// Compatible with both SQLite and PostgreSQL.
//
// created_at holds fixed-width UTC RFC 3339 text so that range filters and
// ordering behave the same on both drivers.

const schemaAuditEvents = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    actor TEXT NOT NULL,
    action TEXT NOT NULL,
    subject TEXT,
    detail TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_action ON audit_events(action, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAuditEvents,
	}
}
