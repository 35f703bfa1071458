// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// timeLayout is fixed width so text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool. An in-memory database lives in its single
	// connection and keeps the pool openSQLite set.
	memory := cfg.Driver == "sqlite" && cfg.SQLitePath == ":memory:"
	if memory {
		cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime = 0, 0, 0
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// RecordAudit appends an event. ID and CreatedAt are filled when empty.
func (r *SQLRepository) RecordAudit(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil || event.Action == "" {
		return fmt.Errorf("%w: audit action is required", ErrInvalidInput)
	}
	if event.Actor == "" {
		return fmt.Errorf("%w: audit actor is required", ErrInvalidInput)
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC()

	var detail sql.NullString
	if len(event.Detail) > 0 {
		data, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("%w: audit detail: %v", ErrInvalidInput, err)
		}
		detail = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO audit_events (id, actor, action, subject, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		event.ID, event.Actor, event.Action, event.Subject, detail,
		event.CreatedAt.Format(timeLayout),
	)
	return err
}

// ListAudit returns matching events, newest first.
func (r *SQLRepository) ListAudit(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if filter.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, actor, action, subject, detail, created_at
		FROM audit_events
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + strconv.Itoa(limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.AuditEvent, 0)
	for rows.Next() {
		var (
			e         domain.AuditEvent
			subject   sql.NullString
			detail    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &subject, &detail, &createdAt); err != nil {
			return nil, err
		}

		e.Subject = subject.String
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to parse audit detail for %s: %w", e.ID, err)
			}
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse audit time for %s: %w", e.ID, err)
		}

		events = append(events, &e)
	}

	return events, rows.Err()
}

// PurgeAudit deletes events created before the cutoff and returns the count.
func (r *SQLRepository) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM audit_events WHERE created_at < ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), before.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
