package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestKind tags the request variants handled by the lifecycle.
type RequestKind string

const (
	KindMoney      RequestKind = "money"
	KindWithdrawal RequestKind = "withdrawal"
	KindApproval   RequestKind = "approval"
)

// PolicyKind selects the eligibility policy guarding a request type.
type PolicyKind string

const (
	PolicyWeekly        PolicyKind = "weekly"
	PolicyMonthly       PolicyKind = "monthly"
	PolicyDiscretionary PolicyKind = "discretionary"
)

// RequestType is the closed set of money request categories.
type RequestType string

const (
	TypeAdvance          RequestType = "advance"
	TypeLunchRefreshment RequestType = "lunch_refreshment"
	TypeBonus            RequestType = "bonus"
	TypeExpense          RequestType = "expense"
	TypeEmergency        RequestType = "emergency"
	TypeMidMonth         RequestType = "mid-month"
	TypeEndMonth         RequestType = "end-month"
)

// RequestTypes lists every supported category.
var RequestTypes = []RequestType{
	TypeAdvance, TypeLunchRefreshment, TypeBonus, TypeExpense,
	TypeEmergency, TypeMidMonth, TypeEndMonth,
}

func ParseRequestType(s string) (RequestType, error) {
	for _, t := range RequestTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown request type %q", s)
}

// Policy is the eligibility policy the type draws against.
func (t RequestType) Policy() PolicyKind {
	switch t {
	case TypeLunchRefreshment:
		return PolicyWeekly
	case TypeAdvance, TypeEmergency, TypeMidMonth, TypeEndMonth:
		return PolicyMonthly
	}
	return PolicyDiscretionary
}

// CalendarGated reports whether submissions are limited to a date window.
func (t RequestType) CalendarGated() bool {
	return t == TypeMidMonth || t == TypeEndMonth
}

// IsSalary reports whether the type draws on the monthly salary floor.
func (t RequestType) IsSalary() bool {
	return t.Policy() == PolicyMonthly
}

// InitialStage is whose turn comes first. Payroll-originated categories start
// with Finance, everything else with Admin.
func (t RequestType) InitialStage() Stage {
	if t == TypeMidMonth || t == TypeEndMonth {
		return StagePendingFinance
	}
	return StagePendingAdmin
}

type PaymentChannel string

const (
	ChannelCash        PaymentChannel = "CASH"
	ChannelMobileMoney PaymentChannel = "MOBILE_MONEY"
)

const (
	MoneyStatusPending  = "pending"
	MoneyStatusApproved = "approved"
	MoneyStatusRejected = "rejected"
)

// MoneyRequest asks for a new disbursement against salary or allowance policy.
type MoneyRequest struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Reason            string          `json:"reason" db:"reason"`
	RequestType       RequestType     `json:"request_type" db:"request_type"`
	PeriodMonth       *time.Time      `json:"period_month,omitempty" db:"period_month"`
	ApprovalStage     Stage           `json:"approval_stage" db:"approval_stage"`
	AdminApproved     bool            `json:"admin_approved" db:"admin_approved"`
	AdminApprovedBy   *string         `json:"admin_approved_by,omitempty" db:"admin_approved_by"`
	AdminApprovedAt   *time.Time      `json:"admin_approved_at,omitempty" db:"admin_approved_at"`
	FinanceApproved   bool            `json:"finance_approved" db:"finance_approved"`
	FinanceApprovedBy *string         `json:"finance_approved_by,omitempty" db:"finance_approved_by"`
	FinanceApprovedAt *time.Time      `json:"finance_approved_at,omitempty" db:"finance_approved_at"`
	Status            string          `json:"status" db:"status"`
	PaymentChannel    PaymentChannel  `json:"payment_channel" db:"payment_channel"`
	PhoneNumber       *string         `json:"phone_number,omitempty" db:"phone_number"`
	RejectionReason   *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Comments          *string         `json:"comments,omitempty" db:"comments"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func (r *MoneyRequest) IsTerminal() bool {
	return r.Status == MoneyStatusApproved || r.Status == MoneyStatusRejected
}

// Consensus lifts the stored flags into the approval state machine.
func (r *MoneyRequest) Consensus() Consensus {
	c := Consensus{
		Initial: r.RequestType.InitialStage(),
		Admin:   Vote{Approved: r.AdminApproved, By: r.AdminApprovedBy, At: r.AdminApprovedAt},
		Finance: Vote{Approved: r.FinanceApproved, By: r.FinanceApprovedBy, At: r.FinanceApprovedAt},
	}
	if r.Status == MoneyStatusRejected {
		c.Rejection = &Rejection{}
	}
	return c
}

// Apply writes the state machine back onto the stored flags.
func (r *MoneyRequest) Apply(c Consensus, at time.Time) {
	r.AdminApproved, r.AdminApprovedBy, r.AdminApprovedAt = c.Admin.Approved, c.Admin.By, c.Admin.At
	r.FinanceApproved, r.FinanceApprovedBy, r.FinanceApprovedAt = c.Finance.Approved, c.Finance.By, c.Finance.At
	r.ApprovalStage = c.Stage()
	switch r.ApprovalStage {
	case StageApproved:
		r.Status = MoneyStatusApproved
	case StageRejected:
		r.Status = MoneyStatusRejected
		if c.Rejection != nil && c.Rejection.Reason != "" {
			reason := string(c.Rejection.Reason)
			r.RejectionReason = &reason
			if c.Rejection.Comments != "" {
				comments := c.Rejection.Comments
				r.Comments = &comments
			}
		}
	default:
		r.Status = MoneyStatusPending
	}
	r.UpdatedAt = at
}

// SubmissionPayload carries the kind-specific fields of a submission.
type SubmissionPayload interface {
	Kind() RequestKind
}

type MoneyRequestPayload struct {
	RequestType    RequestType
	Reason         string
	PaymentChannel PaymentChannel
	PhoneNumber    string
}

func (MoneyRequestPayload) Kind() RequestKind { return KindMoney }

type WithdrawalPayload struct {
	Channel     WithdrawalChannel
	PhoneNumber string
}

func (WithdrawalPayload) Kind() RequestKind { return KindWithdrawal }

type ApprovalPayload struct {
	Title       string
	Description string
	Department  string
	Priority    string
	Type        string
	Details     []byte
}

func (ApprovalPayload) Kind() RequestKind { return KindApproval }
