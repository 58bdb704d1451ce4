package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// Storage level errors. Implementations wrap driver errors with these so the
// service layer can classify failures without knowing the backend.
var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate record")
	ErrConflict    = errors.New("serialization conflict")
	ErrUnavailable = errors.New("store unavailable")
)

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	// Append persists an entry. A reused reference returns ErrDuplicate.
	Append(ctx context.Context, entry *domain.LedgerEntry) error

	// SumByUser returns Σ amount over every entry of the account.
	SumByUser(ctx context.Context, userID string) (decimal.Decimal, error)

	// ListByUser returns the account's entries ordered by creation.
	ListByUser(ctx context.Context, userID string) ([]*domain.LedgerEntry, error)

	// ExistsReference reports whether an entry with the reference exists.
	ExistsReference(ctx context.Context, reference string) (bool, error)
}

type EmployeeRepository interface {
	Create(ctx context.Context, employee *domain.Employee) error
	GetByUserID(ctx context.Context, userID string) (*domain.Employee, error)
	List(ctx context.Context) ([]*domain.Employee, error)
}

type AttendanceRepository interface {
	Record(ctx context.Context, attendance *domain.Attendance) error

	// CountPresent counts distinct present days in [from, to].
	CountPresent(ctx context.Context, userID string, from, to time.Time) (int, error)

	// PresentOn lists the users present on the given calendar day.
	PresentOn(ctx context.Context, day time.Time) ([]string, error)
}

type PayrollRepository interface {
	Upsert(ctx context.Context, adjustment *domain.PayrollAdjustment) error

	// GetAdjustment returns nil, nil when payroll has nothing for the month.
	GetAdjustment(ctx context.Context, userID string, periodMonth time.Time) (*domain.PayrollAdjustment, error)
}

type MoneyRequestRepository interface {
	Create(ctx context.Context, request *domain.MoneyRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MoneyRequest, error)
	Update(ctx context.Context, request *domain.MoneyRequest) error
	ListByUser(ctx context.Context, userID string) ([]*domain.MoneyRequest, error)

	// SumCreatedBetween sums requests of the given types and statuses created in [from, to).
	SumCreatedBetween(ctx context.Context, userID string, types []domain.RequestType, statuses []string, from, to time.Time) (decimal.Decimal, error)

	// SumForPeriod sums requests of the given types and statuses assigned to a salary month.
	SumForPeriod(ctx context.Context, userID string, types []domain.RequestType, statuses []string, periodMonth time.Time) (decimal.Decimal, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, request *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, request *domain.WithdrawalRequest) error
	ListByUser(ctx context.Context, userID string) ([]*domain.WithdrawalRequest, error)

	// SumByStatuses sums the account's withdrawals currently in one of statuses.
	SumByStatuses(ctx context.Context, userID string, statuses []string) (decimal.Decimal, error)
}

type ApprovalRequestRepository interface {
	Create(ctx context.Context, request *domain.ApprovalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error)
	Update(ctx context.Context, request *domain.ApprovalRequest) error
}

// WorkflowRepository is the append-only audit trail.
type WorkflowRepository interface {
	Append(ctx context.Context, step *domain.WorkflowStep) error

	// ListByPaymentID returns steps by timestamp ascending, then insertion order.
	ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.WorkflowStep, error)
}

// Repositories groups the repositories sharing one connection or transaction.
type Repositories interface {
	Ledger() LedgerRepository
	Employees() EmployeeRepository
	Attendance() AttendanceRepository
	Payroll() PayrollRepository
	MoneyRequests() MoneyRequestRepository
	Withdrawals() WithdrawalRepository
	Approvals() ApprovalRequestRepository
	Workflow() WorkflowRepository
}

// Store is the persistent record store.
type Store interface {
	Repositories

	// Atomically runs fn in one transaction serialized against every other
	// Atomically call holding the same lock key. Writes made by fn are
	// discarded when it returns an error.
	Atomically(ctx context.Context, lockKey string, fn func(repos Repositories) error) error

	// Now is the store's notion of the current time.
	Now(ctx context.Context) (time.Time, error)

	Ping(ctx context.Context) error
	Close() error
}

func AccountLockKey(userID string) string {
	return "account:" + userID
}

func ApprovalLockKey(id uuid.UUID) string {
	return "approval:" + id.String()
}
