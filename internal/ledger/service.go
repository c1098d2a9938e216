package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/stocktrail/stocktrail/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error)
	ListStockLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, error)
	ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error)
	ListKeys(ctx context.Context) ([]Key, error)
}

// TxRepository exposes transactional operations used by the applier and
// verifier. Every method runs against the same storage transaction.
type TxRepository interface {
	GetLevelForUpdate(ctx context.Context, productID, locationID int64) (StockLevel, error)
	UpsertLevel(ctx context.Context, level StockLevel) error
	InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error)
	SumDeltas(ctx context.Context, productID, locationID int64) (int64, error)
	KeyHeld(ctx context.Context, productID, locationID int64) (bool, error)
	InsertHold(ctx context.Context, productID, locationID, stored, recomputed int64) error
	InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error
}

// Service coordinates ledger operations. It is the sole mutation path to
// stock levels, so every committed delta carries its adjustment and audit rows.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Apply validates and atomically applies a single stock delta, appending the
// adjustment and its audit entry in the same transaction.
func (s *Service) Apply(ctx context.Context, input ApplyInput) (ApplyResult, error) {
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = ApplyInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// ApplyInTx performs the applier steps against an open transaction. The
// transfer workflow reuses it so both legs of a completion share one
// transaction boundary. Callers lock keys in ascending location id order when
// touching more than one.
func ApplyInTx(ctx context.Context, tx TxRepository, input ApplyInput) (ApplyResult, error) {
	if input.ProductID <= 0 || input.LocationID <= 0 {
		return ApplyResult{}, errors.New("ledger: product and location required")
	}
	if input.Delta == 0 {
		return ApplyResult{}, ErrInvalidQuantity
	}
	if !input.Type.Valid() {
		return ApplyResult{}, ErrInvalidType
	}
	if input.Type.IsTransfer() && input.TransferID == 0 {
		return ApplyResult{}, ErrTransferRefRequired
	}
	if !input.Type.IsTransfer() && input.TransferID != 0 {
		return ApplyResult{}, fmt.Errorf("ledger: transfer id only valid on transfer adjustments")
	}

	held, err := tx.KeyHeld(ctx, input.ProductID, input.LocationID)
	if err != nil {
		return ApplyResult{}, err
	}
	if held {
		return ApplyResult{}, fmt.Errorf("%w: key held pending investigation", ErrLedgerDivergence)
	}

	level, err := tx.GetLevelForUpdate(ctx, input.ProductID, input.LocationID)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return ApplyResult{}, err
	}
	if errors.Is(err, ErrLevelNotFound) {
		level = StockLevel{ProductID: input.ProductID, LocationID: input.LocationID}
	}

	newQty := level.Quantity + input.Delta
	if newQty < 0 {
		return ApplyResult{}, ErrInsufficientStock
	}

	adjID, err := tx.InsertAdjustment(ctx, Adjustment{
		ProductID:     input.ProductID,
		LocationID:    input.LocationID,
		QuantityDelta: input.Delta,
		Type:          input.Type,
		Reason:        input.Reason,
		ActorID:       input.ActorID,
		TransferID:    input.TransferID,
	})
	if err != nil {
		return ApplyResult{}, err
	}

	level.Quantity = newQty
	if err := tx.UpsertLevel(ctx, level); err != nil {
		return ApplyResult{}, err
	}

	entry := shared.AuditEntry{
		ActorID:  input.ActorID,
		Action:   shared.AuditActionApply,
		Entity:   "stock_adjustment",
		EntityID: fmt.Sprintf("%d", adjID),
		Meta: map[string]any{
			"product_id":   input.ProductID,
			"location_id":  input.LocationID,
			"delta":        input.Delta,
			"type":         string(input.Type),
			"new_quantity": newQty,
		},
	}
	if input.TransferID != 0 {
		entry.Meta["transfer_id"] = input.TransferID
	}
	if err := tx.InsertAuditEntry(ctx, entry); err != nil {
		return ApplyResult{}, err
	}

	return ApplyResult{NewQuantity: newQty, AdjustmentID: adjID}, nil
}

// GetStockLevel returns the quantity for one key. Unseen keys are zero stock.
func (s *Service) GetStockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	if productID <= 0 || locationID <= 0 {
		return StockLevel{}, errors.New("ledger: product and location required")
	}
	level, err := s.repo.GetStockLevel(ctx, productID, locationID)
	if errors.Is(err, ErrLevelNotFound) {
		return StockLevel{ProductID: productID, LocationID: locationID}, nil
	}
	return level, err
}

// ListStockLevels lists stock levels with optional filters.
func (s *Service) ListStockLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, error) {
	return s.repo.ListStockLevels(ctx, filter)
}

// ListAdjustments lists adjustment history for one key.
func (s *Service) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error) {
	if filter.ProductID <= 0 || filter.LocationID <= 0 {
		return nil, errors.New("ledger: product and location required")
	}
	return s.repo.ListAdjustments(ctx, filter)
}
