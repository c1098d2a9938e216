package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stocktrail/stocktrail/internal/ledger"
	"github.com/stocktrail/stocktrail/internal/observability"
)

type stubVerifier struct {
	results []ledger.VerifyResult
	err     error
	calls   int
}

func (s *stubVerifier) VerifyAll(ctx context.Context) ([]ledger.VerifyResult, error) {
	s.calls++
	return s.results, s.err
}

func TestReconcileHandlerReportsDivergences(t *testing.T) {
	verifier := &stubVerifier{results: []ledger.VerifyResult{
		{ProductID: 1, LocationID: 2, Stored: 40, Recomputed: 25},
	}}
	handler := NewReconcileHandler(slog.Default(), verifier, observability.NewMetrics())

	task, err := NewReconcileTask(ReconcilePayload{})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 1, verifier.calls)
}

func TestReconcileHandlerPropagatesFailure(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("db unreachable")}
	handler := NewReconcileHandler(slog.Default(), verifier, observability.NewMetrics())

	task, err := NewReconcileTask(ReconcilePayload{})
	require.NoError(t, err)

	require.Error(t, handler(context.Background(), task))
}

func TestReconcileHandlerSkipsBadPayload(t *testing.T) {
	handler := NewReconcileHandler(slog.Default(), &stubVerifier{}, observability.NewMetrics())
	task := asynq.NewTask(TaskLedgerReconcile, []byte("{not json"))
	require.ErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)
}

type stubCleaner struct {
	got time.Duration
	err error
}

func (s *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.got = olderThan
	return s.err
}

func TestCleanupHandlerDefaultsRetention(t *testing.T) {
	cleaner := &stubCleaner{}
	handler := NewCleanupHandler(slog.Default(), cleaner)

	task, err := NewCleanupTask(CleanupPayload{})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, defaultIdempotencyRetention, cleaner.got)
}
