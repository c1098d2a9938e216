package transfer

import (
	"errors"
	"time"
)

// Status enumerates transfer lifecycle states.
type Status string

const (
	// StatusPending means requested and awaiting approval.
	StatusPending Status = "pending"
	// StatusApproved means cleared to move stock.
	StatusApproved Status = "approved"
	// StatusCompleted means both legs of the movement are committed. Terminal.
	StatusCompleted Status = "completed"
	// StatusCanceled means abandoned before any stock moved. Terminal.
	StatusCanceled Status = "canceled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Transfer models a paired decrement/increment between two locations, gated
// by approval. Pending transfers reserve nothing at the source; a transfer
// approved long ago can still fail at completion if the source drained.
type Transfer struct {
	ID             int64
	ProductID      int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int64
	Status         Status
	Reason         string
	RequestedBy    int64
	ApprovedBy     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput describes a transfer request.
type CreateInput struct {
	ProductID      int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int64
	Reason         string
	RequestedBy    int64
}

// ListFilter filters transfer listings.
type ListFilter struct {
	ProductID  int64
	LocationID int64
	Status     Status
	Limit      int
}

var (
	// ErrInvalidTransferState occurs when an action violates the status workflow.
	ErrInvalidTransferState = errors.New("transfer: invalid state transition")
	// ErrAlreadyProcessed occurs when the transfer has already advanced past
	// the requested transition.
	ErrAlreadyProcessed = errors.New("transfer: already processed")
	// ErrNotFound indicates a missing transfer.
	ErrNotFound = errors.New("transfer: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("transfer: invalid input")
)
