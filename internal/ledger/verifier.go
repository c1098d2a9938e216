package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/stocktrail/stocktrail/internal/shared"
)

// Verify recomputes the quantity for one key from its adjustment history and
// compares it against the stored stock level. A mismatch places a hold on the
// key, blocking further writes until an operator investigates; it is never
// auto-corrected. Intended for periodic reconciliation, not the request path.
func (s *Service) Verify(ctx context.Context, productID, locationID int64) (VerifyResult, error) {
	if productID <= 0 || locationID <= 0 {
		return VerifyResult{}, errors.New("ledger: product and location required")
	}
	result := VerifyResult{ProductID: productID, LocationID: locationID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		level, err := tx.GetLevelForUpdate(ctx, productID, locationID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		sum, err := tx.SumDeltas(ctx, productID, locationID)
		if err != nil {
			return err
		}
		result.Stored = level.Quantity
		result.Recomputed = sum
		result.Consistent = level.Quantity == sum
		if result.Consistent {
			return nil
		}
		if err := tx.InsertHold(ctx, productID, locationID, level.Quantity, sum); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:  0,
			Action:   shared.AuditActionVerify,
			Entity:   "stock_level",
			EntityID: fmt.Sprintf("%d:%d", productID, locationID),
			Meta: map[string]any{
				"product_id":  productID,
				"location_id": locationID,
				"stored":      level.Quantity,
				"recomputed":  sum,
				"divergent":   true,
			},
		})
	})
	if err != nil {
		return VerifyResult{}, err
	}
	if !result.Consistent {
		return result, fmt.Errorf("%w: stored=%d recomputed=%d", ErrLedgerDivergence, result.Stored, result.Recomputed)
	}
	return result, nil
}

// VerifyAll sweeps every known key. Divergent keys are collected rather than
// aborting the sweep; infrastructure errors stop it.
func (s *Service) VerifyAll(ctx context.Context) ([]VerifyResult, error) {
	keys, err := s.repo.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	var divergent []VerifyResult
	for _, key := range keys {
		result, err := s.Verify(ctx, key.ProductID, key.LocationID)
		if err != nil {
			if errors.Is(err, ErrLedgerDivergence) {
				divergent = append(divergent, result)
				continue
			}
			return divergent, err
		}
	}
	return divergent, nil
}
