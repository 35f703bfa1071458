// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository persists the audit trail. Applicant profiles are never stored.
type Repository interface {
	RecordAudit(ctx context.Context, event *AuditEvent) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEvent, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AuditEvent records a user action or a decision summary.
type AuditEvent struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Subject   string         `json:"subject,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditFilter narrows ListAudit. Zero values match everything.
type AuditFilter struct {
	Actor  string
	Action string
	Since  time.Time
	Limit  int
}

// Audit actions.
const (
	AuditAuthVerified       = "auth.verified"
	AuditAuthFailed         = "auth.failed"
	AuditDecisionIssued     = "decision.issued"
	AuditDecisionOverridden = "decision.overridden"
	AuditUserAdded          = "user.added"
	AuditUserDeleted        = "user.deleted"
	AuditPurged             = "audit.purged"
)

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgres_host"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgres_port"`
	PostgresUser     string `json:"postgresUser" yaml:"postgres_user"`
	PostgresPassword string `json:"-" yaml:"postgres_password"`
	PostgresDB       string `json:"postgresDb" yaml:"postgres_db"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"conn_max_lifetime"`
}
