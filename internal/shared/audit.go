package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded for every mutation.
const (
	AuditActionCreate   = "create"
	AuditActionUpdate   = "update"
	AuditActionDelete   = "delete"
	AuditActionApprove  = "approve"
	AuditActionComplete = "complete"
	AuditActionCancel   = "cancel"
	AuditActionApply    = "apply"
	AuditActionVerify   = "verify"
)

// AuditEntry represents a record stored in audit_logs.
type AuditEntry struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Execer is the minimal write surface shared by pgxpool.Pool and pgx.Tx.
// Audit entries written through a pgx.Tx share its transaction boundary.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertAuditEntry appends the entry via db. Callers that pass a transaction
// get rollback of the entry together with the enclosing mutation.
func InsertAuditEntry(ctx context.Context, db Execer, entry AuditEntry) error {
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, metaJSON, nullTime(entry.At))
	return err
}

// AuditLogger writes records into audit_logs outside any caller transaction.
// Mutation paths with atomicity requirements use InsertAuditEntry with their
// own pgx.Tx instead.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	return InsertAuditEntry(ctx, l.pool, entry)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
