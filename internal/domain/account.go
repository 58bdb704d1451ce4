package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
)

// LedgerEntry is an immutable signed monetary record. Credits carry a positive
// amount and debits a negative one, so a balance is the plain sum.
type LedgerEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	EntryType EntryType       `json:"entry_type" db:"entry_type"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Reference string          `json:"reference" db:"reference"`
	Metadata  string          `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NewCredit builds a credit entry for a positive amount.
func NewCredit(userID string, amount decimal.Decimal, reference string, at time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:        uuid.New(),
		UserID:    userID,
		EntryType: EntryCredit,
		Amount:    amount.Abs(),
		Reference: reference,
		CreatedAt: at,
	}
}

// NewDebit builds a debit entry; the stored amount is negative.
func NewDebit(userID string, amount decimal.Decimal, reference string, at time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:        uuid.New(),
		UserID:    userID,
		EntryType: EntryDebit,
		Amount:    amount.Abs().Neg(),
		Reference: reference,
		CreatedAt: at,
	}
}

// AccountSnapshot is the derived balance view of one account.
type AccountSnapshot struct {
	UserID             string          `json:"user_id"`
	WalletBalance      decimal.Decimal `json:"wallet_balance"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	AvailableToRequest decimal.Decimal `json:"available_to_request"`
}

// AuthorizationCeiling is the largest amount a new withdrawal may reserve.
func (s AccountSnapshot) AuthorizationCeiling() decimal.Decimal {
	if s.AvailableToRequest.IsNegative() {
		return decimal.Zero
	}
	return s.AvailableToRequest
}

// Employee is the account holder profile.
type Employee struct {
	UserID     string          `json:"user_id" db:"user_id"`
	FullName   string          `json:"full_name" db:"full_name"`
	Department string          `json:"department" db:"department"`
	Salary     decimal.Decimal `json:"salary" db:"salary"`
	Timezone   string          `json:"timezone" db:"timezone"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const AttendancePresent = "present"

type Attendance struct {
	UserID string    `json:"user_id" db:"user_id"`
	Date   time.Time `json:"attendance_date" db:"attendance_date"`
	Status string    `json:"status" db:"status"`
}

// PayrollAdjustment holds the payroll-provided inputs of one salary month.
type PayrollAdjustment struct {
	UserID         string          `json:"user_id" db:"user_id"`
	PeriodMonth    time.Time       `json:"period_month" db:"period_month"`
	PaidLastMonth  decimal.Decimal `json:"paid_last_month" db:"paid_last_month"`
	AdvancesOwed   decimal.Decimal `json:"advances_owed" db:"advances_owed"`
	OvertimeEarned decimal.Decimal `json:"overtime_earned" db:"overtime_earned"`
}
