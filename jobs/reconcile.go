package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocktrail/stocktrail/internal/ledger"
	"github.com/stocktrail/stocktrail/internal/observability"
)

// Verifier sweeps every stock key and reports divergent ledgers.
type Verifier interface {
	VerifyAll(ctx context.Context) ([]ledger.VerifyResult, error)
}

// NewReconcileHandler returns the handler for ledger reconciliation sweeps.
// Divergent keys are held and logged by the sweep itself, so finding them is
// a successful run; only infrastructure failures are retried.
func NewReconcileHandler(logger *slog.Logger, verifier Verifier, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReconcilePayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		start := time.Now()
		divergent, err := verifier.VerifyAll(ctx)
		if err != nil {
			logger.Error("ledger reconcile sweep failed", slog.Any("error", err))
			return err
		}
		metrics.SetDivergentKeys(len(divergent))
		for _, result := range divergent {
			logger.Warn("ledger divergence held",
				slog.Int64("product_id", result.ProductID),
				slog.Int64("location_id", result.LocationID),
				slog.Int64("stored", result.Stored),
				slog.Int64("recomputed", result.Recomputed),
			)
		}
		logger.Info("ledger reconcile sweep finished",
			slog.Int("divergent", len(divergent)),
			slog.Duration("took", time.Since(start)),
		)
		return nil
	}
}

// IdempotencyCleaner prunes idempotency keys past their retention.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

const defaultIdempotencyRetention = 24 * time.Hour

// NewCleanupHandler returns the handler for idempotency key cleanup.
func NewCleanupHandler(logger *slog.Logger, cleaner IdempotencyCleaner) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CleanupPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		retention := payload.Retention
		if retention <= 0 {
			retention = defaultIdempotencyRetention
		}
		if err := cleaner.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup finished", slog.Duration("retention", retention))
		return nil
	}
}
