package ledger

import (
	"errors"
	"time"
)

// AdjustmentType enumerates supported stock movements.
type AdjustmentType string

const (
	// AdjustmentReceive records incoming stock.
	AdjustmentReceive AdjustmentType = "receive"
	// AdjustmentRemove records outgoing stock.
	AdjustmentRemove AdjustmentType = "remove"
	// AdjustmentCorrect fixes a miscounted quantity.
	AdjustmentCorrect AdjustmentType = "correct"
	// AdjustmentAudit records a counted correction from a physical audit.
	AdjustmentAudit AdjustmentType = "audit"
	// AdjustmentLoss records shrinkage, damage or theft.
	AdjustmentLoss AdjustmentType = "loss"
	// AdjustmentTransferIn is the receiving leg of a transfer.
	AdjustmentTransferIn AdjustmentType = "transfer_in"
	// AdjustmentTransferOut is the sending leg of a transfer.
	AdjustmentTransferOut AdjustmentType = "transfer_out"
)

// Valid reports whether the type is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentReceive, AdjustmentRemove, AdjustmentCorrect, AdjustmentAudit, AdjustmentLoss, AdjustmentTransferIn, AdjustmentTransferOut:
		return true
	}
	return false
}

// IsTransfer reports whether the type is a transfer leg.
func (t AdjustmentType) IsTransfer() bool {
	return t == AdjustmentTransferIn || t == AdjustmentTransferOut
}

// StockLevel is the authoritative quantity per (product, location).
type StockLevel struct {
	ProductID  int64
	LocationID int64
	Quantity   int64
	UpdatedAt  time.Time
}

// Adjustment is one committed stock delta. Rows are immutable once created;
// corrections are new adjustments, never edits.
type Adjustment struct {
	ID            int64
	ProductID     int64
	LocationID    int64
	QuantityDelta int64
	Type          AdjustmentType
	Reason        string
	ActorID       int64
	TransferID    int64
	CreatedAt     time.Time
}

// ApplyInput describes a requested stock delta.
type ApplyInput struct {
	ProductID  int64
	LocationID int64
	Delta      int64
	Type       AdjustmentType
	Reason     string
	ActorID    int64
	TransferID int64
}

// ApplyResult reports the committed outcome of an adjustment.
type ApplyResult struct {
	NewQuantity  int64
	AdjustmentID int64
}

// ListFilter filters adjustment history for one key.
type ListFilter struct {
	ProductID  int64
	LocationID int64
	From       time.Time
	To         time.Time
	Limit      int
}

// LevelFilter filters stock level listings.
type LevelFilter struct {
	ProductID    int64
	LocationID   int64
	BelowMinimum bool
	Limit        int
}

// Key identifies one (product, location) ledger key.
type Key struct {
	ProductID  int64
	LocationID int64
}

// VerifyResult reports a reconciliation outcome for one key.
type VerifyResult struct {
	ProductID  int64
	LocationID int64
	Stored     int64
	Recomputed int64
	Consistent bool
}

var (
	// ErrInsufficientStock triggered when a delta would drive quantity below zero.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	// ErrInvalidQuantity indicates a zero delta.
	ErrInvalidQuantity = errors.New("ledger: quantity delta must be non zero")
	// ErrInvalidType indicates an unknown adjustment type.
	ErrInvalidType = errors.New("ledger: unknown adjustment type")
	// ErrTransferRefRequired indicates a transfer leg without a transfer id.
	ErrTransferRefRequired = errors.New("ledger: transfer adjustments require a transfer id")
	// ErrLedgerDivergence indicates stored quantity disagrees with the sum of
	// committed deltas. Affected keys are held until an operator clears them.
	ErrLedgerDivergence = errors.New("ledger: stored quantity diverges from adjustment history")
	// ErrLevelNotFound indicates a missing stock level row. Callers treat the
	// key as zero stock.
	ErrLevelNotFound = errors.New("ledger: stock level not found")
)
