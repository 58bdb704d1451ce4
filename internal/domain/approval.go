package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

const (
	ApprovalStatusPending  = "Pending"
	ApprovalStatusApproved = "Approved"
	ApprovalStatusRejected = "Rejected"
)

// ApprovalRequest is a generic two-party approval not tied to the wallet
// ledger, such as procurement or quality-linked payments.
type ApprovalRequest struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Title             string          `json:"title" db:"title"`
	Description       string          `json:"description" db:"description"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Department        string          `json:"department" db:"department"`
	RequestedBy       string          `json:"requestedby" db:"requestedby"`
	Priority          string          `json:"priority" db:"priority"`
	Type              string          `json:"type" db:"type"`
	Status            string          `json:"status" db:"status"`
	ApprovalStage     Stage           `json:"approval_stage" db:"approval_stage"`
	AdminApproved     bool            `json:"admin_approved" db:"admin_approved"`
	AdminApprovedBy   *string         `json:"admin_approved_by,omitempty" db:"admin_approved_by"`
	AdminApprovedAt   *time.Time      `json:"admin_approved_at,omitempty" db:"admin_approved_at"`
	FinanceApproved   bool            `json:"finance_approved" db:"finance_approved"`
	FinanceApprovedBy *string         `json:"finance_approved_by,omitempty" db:"finance_approved_by"`
	FinanceApprovedAt *time.Time      `json:"finance_approved_at,omitempty" db:"finance_approved_at"`
	RejectionReason   *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Details           types.JSONText  `json:"details" db:"details"`
	DateRequested     time.Time       `json:"daterequested" db:"daterequested"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func (r *ApprovalRequest) IsTerminal() bool {
	return r.Status == ApprovalStatusApproved || r.Status == ApprovalStatusRejected
}

// InitialStage is where a fresh or modified approval request starts.
func (r *ApprovalRequest) InitialStage() Stage {
	return StagePendingAdmin
}

func (r *ApprovalRequest) Consensus() Consensus {
	c := Consensus{
		Initial: r.InitialStage(),
		Admin:   Vote{Approved: r.AdminApproved, By: r.AdminApprovedBy, At: r.AdminApprovedAt},
		Finance: Vote{Approved: r.FinanceApproved, By: r.FinanceApprovedBy, At: r.FinanceApprovedAt},
	}
	if r.Status == ApprovalStatusRejected {
		c.Rejection = &Rejection{}
	}
	return c
}

func (r *ApprovalRequest) Apply(c Consensus, at time.Time) {
	r.AdminApproved, r.AdminApprovedBy, r.AdminApprovedAt = c.Admin.Approved, c.Admin.By, c.Admin.At
	r.FinanceApproved, r.FinanceApprovedBy, r.FinanceApprovedAt = c.Finance.Approved, c.Finance.By, c.Finance.At
	r.ApprovalStage = c.Stage()
	switch r.ApprovalStage {
	case StageApproved:
		r.Status = ApprovalStatusApproved
	case StageRejected:
		r.Status = ApprovalStatusRejected
		if c.Rejection != nil && c.Rejection.Reason != "" {
			reason := string(c.Rejection.Reason)
			r.RejectionReason = &reason
		}
	default:
		r.Status = ApprovalStatusPending
	}
	r.UpdatedAt = at
}

// RequestChanges clears both votes and hands the request back to the requester.
func (r *ApprovalRequest) RequestChanges(at time.Time) error {
	if r.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if r.ApprovalStage == StageModificationRequested {
		return ErrAwaitingChange
	}
	c := r.Consensus()
	if err := c.Reset(); err != nil {
		return err
	}
	r.Apply(c, at)
	r.RejectionReason = nil
	r.ApprovalStage = StageModificationRequested
	return nil
}

// Resubmit applies the requester's changes and restarts the approval round.
// Nil arguments leave the field unchanged.
func (r *ApprovalRequest) Resubmit(amount *decimal.Decimal, description *string, at time.Time) error {
	if r.ApprovalStage != StageModificationRequested {
		return ErrNotAwaitingChange
	}
	if amount != nil {
		r.Amount = *amount
	}
	if description != nil {
		r.Description = *description
	}
	r.ApprovalStage = r.InitialStage()
	r.Status = ApprovalStatusPending
	r.UpdatedAt = at
	return nil
}
