package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stocktrail/stocktrail/internal/ledger"
	"github.com/stocktrail/stocktrail/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, error)
}

// TxRepository exposes transactional operations for the workflow. The ledger
// adjustment runs against the same storage transaction as the status change,
// so a completion is never observed half-applied.
type TxRepository interface {
	Insert(ctx context.Context, t Transfer) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Transfer, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetApprover(ctx context.Context, id int64, actorID int64) error
	ApplyAdjustment(ctx context.Context, input ledger.ApplyInput) (ledger.ApplyResult, error)
	InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error
}

// ApprovalPort records approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service orchestrates the transfer workflow.
type Service struct {
	repo        RepositoryPort
	approvals   ApprovalPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs transfer service.
func NewService(repo RepositoryPort, approvals ApprovalPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, approvals: approvals, idempotency: idem}
}

// Create registers a pending transfer. No stock moves until completion and
// nothing is reserved at the source while pending.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transfer, error) {
	if input.ProductID <= 0 || input.FromLocationID <= 0 || input.ToLocationID <= 0 {
		return Transfer{}, fmt.Errorf("%w: product and locations required", ErrValidation)
	}
	if input.FromLocationID == input.ToLocationID {
		return Transfer{}, fmt.Errorf("%w: source and destination must differ", ErrValidation)
	}
	if input.Quantity <= 0 {
		return Transfer{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if input.RequestedBy == 0 {
		return Transfer{}, fmt.Errorf("%w: requester required", ErrValidation)
	}
	t := Transfer{
		ProductID:      input.ProductID,
		FromLocationID: input.FromLocationID,
		ToLocationID:   input.ToLocationID,
		Quantity:       input.Quantity,
		Status:         StatusPending,
		Reason:         input.Reason,
		RequestedBy:    input.RequestedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:  input.RequestedBy,
			Action:   shared.AuditActionCreate,
			Entity:   "stock_transfer",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"product_id":       t.ProductID,
				"from_location_id": t.FromLocationID,
				"to_location_id":   t.ToLocationID,
				"quantity":         t.Quantity,
				"status":           string(StatusPending),
			},
		})
	})
	if err != nil {
		return Transfer{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "TRANSFER", RefID: approvalRef(t.ID), ActorID: input.RequestedBy, Action: shared.ApprovalSubmit, Note: fmt.Sprintf("transfer %d submitted", t.ID)})
	}
	return t, nil
}

// Approve moves a pending transfer to approved.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	if actorID == 0 {
		return Transfer{}, fmt.Errorf("%w: approver required", ErrValidation)
	}
	var result Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return ErrAlreadyProcessed
		}
		if err := tx.UpdateStatus(ctx, id, StatusApproved); err != nil {
			return err
		}
		if err := tx.SetApprover(ctx, id, actorID); err != nil {
			return err
		}
		t.Status = StatusApproved
		t.ApprovedBy = actorID
		result = t
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:  actorID,
			Action:   shared.AuditActionApprove,
			Entity:   "stock_transfer",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"status": string(StatusApproved)},
		})
	})
	if err != nil {
		return Transfer{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "TRANSFER", RefID: approvalRef(id), ActorID: actorID, Action: shared.ApprovalApprove, Note: fmt.Sprintf("transfer %d approved", id)})
	}
	return result, nil
}

// Complete executes an approved transfer: one atomic unit covering the
// transfer_out leg, the transfer_in leg and the status flip. Insufficient
// source stock aborts the whole unit and leaves the transfer approved; retry
// is the caller's responsibility.
func (s *Service) Complete(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	key := fmt.Sprintf("TRF:%d:complete", id)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "transfer"); err != nil {
			return Transfer{}, err
		}
		inserted = true
	}
	var result Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch t.Status {
		case StatusApproved:
		case StatusCompleted, StatusCanceled:
			return ErrAlreadyProcessed
		default:
			return ErrInvalidTransferState
		}

		outInput := ledger.ApplyInput{
			ProductID:  t.ProductID,
			LocationID: t.FromLocationID,
			Delta:      -t.Quantity,
			Type:       ledger.AdjustmentTransferOut,
			Reason:     fmt.Sprintf("transfer %d to location %d", id, t.ToLocationID),
			ActorID:    actorID,
			TransferID: id,
		}
		inInput := ledger.ApplyInput{
			ProductID:  t.ProductID,
			LocationID: t.ToLocationID,
			Delta:      t.Quantity,
			Type:       ledger.AdjustmentTransferIn,
			Reason:     fmt.Sprintf("transfer %d from location %d", id, t.FromLocationID),
			ActorID:    actorID,
			TransferID: id,
		}
		// Keys are locked in ascending location id order so two completions
		// crossing the same pair of locations cannot deadlock. Application
		// order does not matter inside one atomic unit.
		legs := []ledger.ApplyInput{outInput, inInput}
		if inInput.LocationID < outInput.LocationID {
			legs[0], legs[1] = inInput, outInput
		}
		results := make(map[int64]ledger.ApplyResult, 2)
		for _, leg := range legs {
			res, err := tx.ApplyAdjustment(ctx, leg)
			if err != nil {
				return err
			}
			results[leg.LocationID] = res
		}

		if err := tx.UpdateStatus(ctx, id, StatusCompleted); err != nil {
			return err
		}
		t.Status = StatusCompleted
		result = t
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:  actorID,
			Action:   shared.AuditActionComplete,
			Entity:   "stock_transfer",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"status":            string(StatusCompleted),
				"out_adjustment_id": results[t.FromLocationID].AdjustmentID,
				"in_adjustment_id":  results[t.ToLocationID].AdjustmentID,
				"from_quantity":     results[t.FromLocationID].NewQuantity,
				"to_quantity":       results[t.ToLocationID].NewQuantity,
			},
		})
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Transfer{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "TRANSFER", RefID: approvalRef(id), ActorID: actorID, Action: shared.ApprovalComplete, Note: fmt.Sprintf("transfer %d completed", id)})
	}
	return result, nil
}

// Cancel abandons a pending or approved transfer. No stock moved, so there is
// nothing to unwind.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	var result Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return ErrAlreadyProcessed
		}
		if err := tx.UpdateStatus(ctx, id, StatusCanceled); err != nil {
			return err
		}
		t.Status = StatusCanceled
		result = t
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:  actorID,
			Action:   shared.AuditActionCancel,
			Entity:   "stock_transfer",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"status": string(StatusCanceled)},
		})
	})
	if err != nil {
		return Transfer{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "TRANSFER", RefID: approvalRef(id), ActorID: actorID, Action: shared.ApprovalReject, Note: fmt.Sprintf("transfer %d canceled", id)})
	}
	return result, nil
}

// Get returns one transfer.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, error) {
	if id <= 0 {
		return Transfer{}, fmt.Errorf("%w: transfer id required", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

func approvalRef(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("TRF:%d", id)))
}

// IsTerminalError reports whether err signals an idempotent rejection of an
// already processed transfer (including a duplicate completion request).
func IsTerminalError(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, shared.ErrIdempotencyConflict)
}
