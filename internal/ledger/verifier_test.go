package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyConsistentKey(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 25, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.NoError(t, err)

	result, err := svc.Verify(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.EqualValues(t, 25, result.Stored)
	require.EqualValues(t, 25, result.Recomputed)
}

func TestVerifyDetectsDivergenceAndHolds(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 25, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.NoError(t, err)

	// Simulate out-of-band corruption of the stored quantity.
	key := Key{ProductID: 1, LocationID: 1}
	level := repo.levels[key]
	level.Quantity = 40
	repo.levels[key] = level

	result, err := svc.Verify(ctx, 1, 1)
	require.ErrorIs(t, err, ErrLedgerDivergence)
	require.False(t, result.Consistent)
	require.EqualValues(t, 40, result.Stored)
	require.EqualValues(t, 25, result.Recomputed)

	// The stored value is never auto-corrected.
	require.EqualValues(t, 40, repo.levels[key].Quantity)
	require.True(t, repo.holds[key])

	// Further writes on the held key are refused.
	_, err = svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 5, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.ErrorIs(t, err, ErrLedgerDivergence)
}

func TestVerifyAll(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 10, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, ApplyInput{ProductID: 2, LocationID: 1, Delta: 20, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.NoError(t, err)

	key := Key{ProductID: 2, LocationID: 1}
	level := repo.levels[key]
	level.Quantity = 99
	repo.levels[key] = level

	divergent, err := svc.VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, divergent, 1)
	require.EqualValues(t, 2, divergent[0].ProductID)
	require.EqualValues(t, 99, divergent[0].Stored)
	require.EqualValues(t, 20, divergent[0].Recomputed)
}
