package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocktrail/stocktrail/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	levels      map[Key]StockLevel
	adjustments []Adjustment
	audits      []shared.AuditEntry
	holds       map[Key]bool
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{levels: make(map[Key]StockLevel), holds: make(map[Key]bool)}
}

type memoryTx struct {
	levels      map[Key]StockLevel
	adjustments []Adjustment
	audits      []shared.AuditEntry
	holds       map[Key]bool
	nextID      int64
}

// WithTx serializes transactions with a mutex and commits staged state only
// when fn succeeds, mirroring row locks plus rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{
		levels:      make(map[Key]StockLevel, len(r.levels)),
		adjustments: append([]Adjustment(nil), r.adjustments...),
		audits:      append([]shared.AuditEntry(nil), r.audits...),
		holds:       make(map[Key]bool, len(r.holds)),
		nextID:      r.nextID,
	}
	for k, v := range r.levels {
		tx.levels[k] = v
	}
	for k, v := range r.holds {
		tx.holds[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.levels = tx.levels
	r.adjustments = tx.adjustments
	r.audits = tx.audits
	r.holds = tx.holds
	r.nextID = tx.nextID
	return nil
}

func (r *memoryRepo) GetStockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.levels[Key{ProductID: productID, LocationID: locationID}]
	if !ok {
		return StockLevel{ProductID: productID, LocationID: locationID}, ErrLevelNotFound
	}
	return level, nil
}

func (r *memoryRepo) ListStockLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	levels := []StockLevel{}
	for _, level := range r.levels {
		levels = append(levels, level)
	}
	return levels, nil
}

func (r *memoryRepo) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []Adjustment{}
	for _, adj := range r.adjustments {
		if adj.ProductID == filter.ProductID && adj.LocationID == filter.LocationID {
			result = append(result, adj)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListKeys(ctx context.Context) ([]Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := []Key{}
	for key := range r.levels {
		keys = append(keys, key)
	}
	return keys, nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	level, ok := tx.levels[Key{ProductID: productID, LocationID: locationID}]
	if !ok {
		return StockLevel{ProductID: productID, LocationID: locationID}, ErrLevelNotFound
	}
	return level, nil
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, level StockLevel) error {
	tx.levels[Key{ProductID: level.ProductID, LocationID: level.LocationID}] = level
	return nil
}

func (tx *memoryTx) InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error) {
	tx.nextID++
	adj.ID = tx.nextID
	tx.adjustments = append(tx.adjustments, adj)
	return adj.ID, nil
}

func (tx *memoryTx) SumDeltas(ctx context.Context, productID, locationID int64) (int64, error) {
	var sum int64
	for _, adj := range tx.adjustments {
		if adj.ProductID == productID && adj.LocationID == locationID {
			sum += adj.QuantityDelta
		}
	}
	return sum, nil
}

func (tx *memoryTx) KeyHeld(ctx context.Context, productID, locationID int64) (bool, error) {
	return tx.holds[Key{ProductID: productID, LocationID: locationID}], nil
}

func (tx *memoryTx) InsertHold(ctx context.Context, productID, locationID, stored, recomputed int64) error {
	tx.holds[Key{ProductID: productID, LocationID: locationID}] = true
	return nil
}

func (tx *memoryTx) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	tx.audits = append(tx.audits, entry)
	return nil
}

func TestApplyAndGet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	level, err := svc.GetStockLevel(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, level.Quantity)

	result, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 100, Type: AdjustmentReceive, Reason: "initial receipt", ActorID: 7})
	require.NoError(t, err)
	require.EqualValues(t, 100, result.NewQuantity)
	require.NotZero(t, result.AdjustmentID)

	level, err = svc.GetStockLevel(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 100, level.Quantity)
}

func TestApplyRejectsInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 10, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: -15, Type: AdjustmentRemove, Reason: "oversell", ActorID: 7})
	require.ErrorIs(t, err, ErrInsufficientStock)

	level, err := svc.GetStockLevel(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 10, level.Quantity)

	adjustments, err := svc.ListAdjustments(ctx, ListFilter{ProductID: 1, LocationID: 1})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
}

func TestApplyValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 0, Type: AdjustmentReceive, ActorID: 7})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 5, Type: AdjustmentType("restock"), ActorID: 7})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 5, Type: AdjustmentTransferIn, ActorID: 7})
	require.ErrorIs(t, err, ErrTransferRefRequired)

	_, err = svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 5, Type: AdjustmentReceive, ActorID: 7, TransferID: 3})
	require.Error(t, err)
}

func TestApplyRecordsAudit(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 2, LocationID: 3, Delta: 4, Type: AdjustmentCorrect, Reason: "count fix", ActorID: 9})
	require.NoError(t, err)

	require.Len(t, repo.audits, 1)
	entry := repo.audits[0]
	require.Equal(t, shared.AuditActionApply, entry.Action)
	require.Equal(t, "stock_adjustment", entry.Entity)
	require.EqualValues(t, 9, entry.ActorID)
	require.EqualValues(t, 4, entry.Meta["new_quantity"])
}

func TestConcurrentAdjustmentsSerialize(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, delta := range []int64{5, 7} {
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: d, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
			require.NoError(t, err)
		}(delta)
	}
	wg.Wait()

	level, err := svc.GetStockLevel(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 12, level.Quantity)

	adjustments, err := svc.ListAdjustments(ctx, ListFilter{ProductID: 1, LocationID: 1})
	require.NoError(t, err)
	require.Len(t, adjustments, 2)
}

func TestApplyRejectedOnHeldKey(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.holds[Key{ProductID: 1, LocationID: 1}] = true

	_, err := svc.Apply(ctx, ApplyInput{ProductID: 1, LocationID: 1, Delta: 5, Type: AdjustmentReceive, Reason: "receipt", ActorID: 7})
	require.ErrorIs(t, err, ErrLedgerDivergence)
}
