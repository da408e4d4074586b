// ABOUTME: Audit log persistence for successful mutating capability calls
// ABOUTME: Records who invoked what with which parameters, newest-first listing

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jojopeligroso/MyCastle-sub007/internal/protocol"
)

// AuditEntry is one persisted audit record.
type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Role      string    `json:"role"`
	Method    string    `json:"method"`
	Params    string    `json:"params,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Record persists a dispatcher audit event. SQLiteStore satisfies the
// dispatcher's AuditRecorder so it can be wired in directly.
func (s *SQLiteStore) Record(ctx context.Context, event *protocol.AuditEvent) error {
	entry := &AuditEntry{
		ID:        uuid.New().String(),
		Actor:     event.Actor,
		Role:      event.Role,
		Method:    event.Method,
		Params:    string(event.Params),
		Timestamp: time.Now().UTC(),
	}
	return s.AppendAudit(ctx, entry)
}

var _ protocol.AuditRecorder = (*SQLiteStore)(nil)

// AppendAudit appends an entry to the audit log. Generates ID and
// Timestamp if not set.
func (s *SQLiteStore) AppendAudit(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, actor, role, method, params_json, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Actor, e.Role, e.Method, nullString(e.Params),
		e.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.Actor,
		"method", e.Method,
	)
	return nil
}

// ListAudit returns audit entries newest first. If limit is 0 or negative,
// a default limit of 100 is used.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, actor, role, method, params_json, ts
		FROM audit_log
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var params *string
		var tsStr string

		if err := rows.Scan(&e.ID, &e.Actor, &e.Role, &e.Method, &params, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if params != nil {
			e.Params = *params
		}
		if e.Timestamp, err = time.Parse(time.RFC3339, tsStr); err != nil {
			return nil, fmt.Errorf("parsing audit timestamp: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}
