package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRecord is an immutable row written for every processed workflow event.
type AuditRecord struct {
	TenantID  int64
	ActorID   int64
	EventKind string
	Entity    string
	EntityID  int64
	OldStatus string
	NewStatus string
	Reason    string
	At        time.Time
	Metadata  map[string]any
}

// AuditLogger writes records into workflow_audit.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the audit entry. Fire-and-record: the sink is never
// consulted for workflow decisions.
func (l *AuditLogger) Record(ctx context.Context, rec AuditRecord) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if rec.TenantID == 0 || rec.EventKind == "" || rec.Entity == "" {
		return errors.New("audit record requires tenant/event/entity")
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO workflow_audit (tenant_id, actor_id, event_kind, entity, entity_id, old_status, new_status, reason, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.TenantID, rec.ActorID, rec.EventKind, rec.Entity, rec.EntityID, rec.OldStatus, rec.NewStatus, rec.Reason, metaJSON, rec.At)
	return err
}
