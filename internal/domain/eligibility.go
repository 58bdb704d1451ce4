package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Eligibility is the outcome of evaluating a request type for an account.
type Eligibility struct {
	UserID      string          `json:"user_id"`
	RequestType RequestType     `json:"request_type"`
	Policy      PolicyKind      `json:"policy"`
	Limit       decimal.Decimal `json:"limit"`
	AlreadyUsed decimal.Decimal `json:"already_used"`
	Available   decimal.Decimal `json:"available"`
	WindowOpen  bool            `json:"window_open"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	PeriodMonth *time.Time      `json:"period_month,omitempty"`
	Message     string          `json:"message"`
}

// WeeklyAllowance is the lunch allowance derived for one Monday–Saturday week.
type WeeklyAllowance struct {
	UserID              string          `json:"user_id"`
	WeekStart           time.Time       `json:"week_start"`
	WeekEnd             time.Time       `json:"week_end"`
	DaysAttended        int             `json:"days_attended"`
	TotalEligibleAmount decimal.Decimal `json:"total_eligible_amount"`
	AmountRequested     decimal.Decimal `json:"amount_requested"`
	BalanceAvailable    decimal.Decimal `json:"balance_available"`
}

// MonthlySalaryPeriod is the salary drawing position for one pay month.
type MonthlySalaryPeriod struct {
	UserID           string          `json:"user_id"`
	RequestType      RequestType     `json:"request_type"`
	PeriodMonth      time.Time       `json:"period_month"`
	Salary           decimal.Decimal `json:"salary"`
	PaidLastMonth    decimal.Decimal `json:"paidLastMonth"`
	AdvancesOwed     decimal.Decimal `json:"advancesOwed"`
	OvertimeEarned   decimal.Decimal `json:"overtimeEarned"`
	BaseAvailable    decimal.Decimal `json:"baseAvailable"`
	AlreadyRequested decimal.Decimal `json:"alreadyRequested"`
	AvailableAmount  decimal.Decimal `json:"availableAmount"`
	CanRequest       bool            `json:"canRequest"`
	Message          string          `json:"message"`
}
