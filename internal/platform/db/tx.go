package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrContention signals a write conflict that survived the bounded retry loop.
var ErrContention = errors.New("platform/db: write contention, retries exhausted")

// maxConflictRetries bounds re-execution of a transaction after a
// serialization failure. Conflicts past this count surface as ErrContention.
const maxConflictRetries = 3

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// WithRetry runs fn through WithTx, re-executing on serialization failures or
// deadlocks up to maxConflictRetries times before surfacing ErrContention.
func WithRetry(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return retryConflict(ctx, func() error {
		return WithTx(ctx, pool, fn)
	})
}

func retryConflict(ctx context.Context, run func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = run()
		if err == nil || !isConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %w", ErrContention, err)
}

// isConflict reports whether the error is a retryable transaction conflict:
// 40001 serialization_failure or 40P01 deadlock_detected.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
