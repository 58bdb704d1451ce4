package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownRole       = errors.New("unknown approver role")
	ErrAlreadyTerminal   = errors.New("request is already in a terminal state")
	ErrAlreadyVoted      = errors.New("role has already approved this request")
	ErrUnknownReason     = errors.New("unknown rejection reason")
	ErrNotAwaitingChange = errors.New("request is not awaiting modification")
	ErrAwaitingChange    = errors.New("request is awaiting modification")
)

// Role is one of the two independent approval authorities.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFinance Role = "finance"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleFinance:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Department is the workflow department name of the role.
func (r Role) Department() string {
	switch r {
	case RoleAdmin:
		return DepartmentAdmin
	case RoleFinance:
		return DepartmentFinance
	}
	return string(r)
}

// Other returns the counterpart voter.
func (r Role) Other() Role {
	if r == RoleAdmin {
		return RoleFinance
	}
	return RoleAdmin
}

// Stage names whose turn is next, or the terminal outcome.
type Stage string

const (
	StagePendingAdmin          Stage = "pending_admin"
	StagePendingFinance        Stage = "pending_finance"
	StageApproved              Stage = "approved"
	StageRejected              Stage = "rejected"
	StageModificationRequested Stage = "modification_requested"
)

func (s Stage) IsTerminal() bool {
	return s == StageApproved || s == StageRejected
}

// StageAwaiting is the pending stage for a given role.
func StageAwaiting(r Role) Stage {
	if r == RoleFinance {
		return StagePendingFinance
	}
	return StagePendingAdmin
}

type RejectionReason string

const (
	ReasonDuplicateOrder    RejectionReason = "duplicate_order"
	ReasonPriceTooHigh      RejectionReason = "price_too_high"
	ReasonNoDemand          RejectionReason = "no_demand"
	ReasonQualityIssues     RejectionReason = "quality_issues"
	ReasonInsufficientFunds RejectionReason = "insufficient_funds"
	ReasonOther             RejectionReason = "other"
)

func ParseRejectionReason(s string) (RejectionReason, error) {
	switch r := RejectionReason(s); r {
	case ReasonDuplicateOrder, ReasonPriceTooHigh, ReasonNoDemand,
		ReasonQualityIssues, ReasonInsufficientFunds, ReasonOther:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReason, s)
}

// Vote is one role's approval.
type Vote struct {
	Approved bool
	By       *string
	At       *time.Time
}

// Rejection records the veto that ended a request.
type Rejection struct {
	Role     Role
	By       string
	At       time.Time
	Reason   RejectionReason
	Comments string
}

// Consensus is a 2-of-2 decision between Admin and Finance. It is approved
// iff both votes are cast and rejected iff either role vetoed.
type Consensus struct {
	Initial   Stage
	Admin     Vote
	Finance   Vote
	Rejection *Rejection
}

func (c *Consensus) vote(r Role) *Vote {
	if r == RoleFinance {
		return &c.Finance
	}
	return &c.Admin
}

// Stage derives the current stage from the votes.
func (c Consensus) Stage() Stage {
	switch {
	case c.Rejection != nil:
		return StageRejected
	case c.Admin.Approved && c.Finance.Approved:
		return StageApproved
	case c.Admin.Approved:
		return StagePendingFinance
	case c.Finance.Approved:
		return StagePendingAdmin
	}
	if c.Initial == "" {
		return StagePendingAdmin
	}
	return c.Initial
}

// Approve casts role's vote and returns the resulting stage.
func (c *Consensus) Approve(role Role, actor string, at time.Time) (Stage, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	if c.Stage().IsTerminal() {
		return "", ErrAlreadyTerminal
	}
	v := c.vote(role)
	if v.Approved {
		return "", ErrAlreadyVoted
	}
	v.Approved = true
	v.By = &actor
	v.At = &at
	return c.Stage(), nil
}

// Reject vetoes the request. A role cannot withdraw an approval it already cast.
func (c *Consensus) Reject(role Role, actor string, at time.Time, reason RejectionReason, comments string) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if _, err := ParseRejectionReason(string(reason)); err != nil {
		return err
	}
	if c.Stage().IsTerminal() {
		return ErrAlreadyTerminal
	}
	if c.vote(role).Approved {
		return ErrAlreadyVoted
	}
	c.Rejection = &Rejection{Role: role, By: actor, At: at, Reason: reason, Comments: comments}
	return nil
}

// Reset clears both votes, used when the requester is asked to modify.
func (c *Consensus) Reset() error {
	if c.Stage().IsTerminal() {
		return ErrAlreadyTerminal
	}
	c.Admin = Vote{}
	c.Finance = Vote{}
	return nil
}
