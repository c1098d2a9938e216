package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile sweeps all stock keys and flags divergent ledgers.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// ReconcilePayload parameterises a reconciliation sweep.
type ReconcilePayload struct {
	RequestedBy int64 `json:"requested_by,omitempty"`
}

// NewReconcileTask constructs a reconciliation task.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, data), nil
}

// CleanupPayload parameterises idempotency key cleanup.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewCleanupTask constructs a cleanup task.
func NewCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
