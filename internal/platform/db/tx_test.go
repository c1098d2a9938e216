package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestRetryConflictExhaustsToContention(t *testing.T) {
	attempts := 0
	err := retryConflict(context.Background(), func() error {
		attempts++
		return serializationFailure()
	})
	require.ErrorIs(t, err, ErrContention)
	require.Equal(t, maxConflictRetries, attempts)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "40001", pgErr.Code)
}

func TestRetryConflictSucceedsAfterConflict(t *testing.T) {
	attempts := 0
	err := retryConflict(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryConflictPassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("column does not exist")
	attempts := 0
	err := retryConflict(context.Background(), func() error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrContention)
	require.Equal(t, 1, attempts)
}

func TestRetryConflictStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retryConflict(ctx, func() error {
		attempts++
		cancel()
		return serializationFailure()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestIsConflict(t *testing.T) {
	require.True(t, isConflict(&pgconn.PgError{Code: "40001"}))
	require.True(t, isConflict(&pgconn.PgError{Code: "40P01"}))
	require.True(t, isConflict(fmt.Errorf("apply: %w", &pgconn.PgError{Code: "40001"})))
	require.False(t, isConflict(&pgconn.PgError{Code: "23505"}))
	require.False(t, isConflict(errors.New("not a pg error")))
	require.False(t, isConflict(nil))
}
