package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalChannel string

const (
	WithdrawalZengaPay WithdrawalChannel = "ZENGAPAY"
	WithdrawalCash     WithdrawalChannel = "CASH"
)

const (
	WithdrawalPending    = "pending"
	WithdrawalApproved   = "approved"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalFailed     = "failed"
	WithdrawalRejected   = "rejected"
)

// ReservingWithdrawalStatuses hold capacity against available_to_request.
var ReservingWithdrawalStatuses = []string{WithdrawalPending, WithdrawalApproved, WithdrawalProcessing}

// WithdrawalRequest draws down already-earned wallet balance.
type WithdrawalRequest struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	UserID               string            `json:"user_id" db:"user_id"`
	Amount               decimal.Decimal   `json:"amount" db:"amount"`
	PhoneNumber          *string           `json:"phone_number,omitempty" db:"phone_number"`
	Channel              WithdrawalChannel `json:"channel" db:"channel"`
	Status               string            `json:"status" db:"status"`
	ApprovedBy           *string           `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt           *time.Time        `json:"approved_at,omitempty" db:"approved_at"`
	ProcessedAt          *time.Time        `json:"processed_at,omitempty" db:"processed_at"`
	TransactionReference *string           `json:"transaction_reference,omitempty" db:"transaction_reference"`
	FailureReason        *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	RejectionReason      *string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// Reserves reports whether the withdrawal still holds wallet capacity.
func (w *WithdrawalRequest) Reserves() bool {
	for _, s := range ReservingWithdrawalStatuses {
		if w.Status == s {
			return true
		}
	}
	return false
}

// Settleable reports whether the withdrawal may complete or fail.
func (w *WithdrawalRequest) Settleable() bool {
	return w.Status == WithdrawalApproved || w.Status == WithdrawalProcessing
}

// LedgerReference is the reference stamped on the settlement debit.
func (w *WithdrawalRequest) LedgerReference() string {
	return "withdrawal:" + w.ID.String()
}
