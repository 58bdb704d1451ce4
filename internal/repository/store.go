package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// repos binds every repository to one sqlx handle (a pool or a transaction).
type repos struct {
	ledger      LedgerRepository
	employees   EmployeeRepository
	attendance  AttendanceRepository
	payroll     PayrollRepository
	money       MoneyRequestRepository
	withdrawals WithdrawalRepository
	approvals   ApprovalRequestRepository
	workflow    WorkflowRepository
}

func newRepos(db sqlx.ExtContext) *repos {
	return &repos{
		ledger:      NewLedgerRepository(db),
		employees:   NewEmployeeRepository(db),
		attendance:  NewAttendanceRepository(db),
		payroll:     NewPayrollRepository(db),
		money:       NewMoneyRequestRepository(db),
		withdrawals: NewWithdrawalRepository(db),
		approvals:   NewApprovalRequestRepository(db),
		workflow:    NewWorkflowRepository(db),
	}
}

func (r *repos) Ledger() LedgerRepository { return r.ledger }
func (r *repos) Employees() EmployeeRepository { return r.employees }
func (r *repos) Attendance() AttendanceRepository { return r.attendance }
func (r *repos) Payroll() PayrollRepository { return r.payroll }
func (r *repos) MoneyRequests() MoneyRequestRepository { return r.money }
func (r *repos) Withdrawals() WithdrawalRepository { return r.withdrawals }
func (r *repos) Approvals() ApprovalRequestRepository { return r.approvals }
func (r *repos) Workflow() WorkflowRepository { return r.workflow }

// PostgresStore implements Store on PostgreSQL. Account scoped sequences
// are serialized with transaction level advisory locks.
type PostgresStore struct {
	*repos
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{repos: newRepos(db), db: db}
}

func (s *PostgresStore) Atomically(ctx context.Context, lockKey string, fn func(repos Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	// Released automatically at commit or rollback.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return classify(err)
	}

	if err := fn(newRepos(tx)); err != nil {
		return classify(err)
	}

	return classify(tx.Commit())
}

// Now returns the database server's clock so every node agrees on windows.
func (s *PostgresStore) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.GetContext(ctx, &now, `SELECT now()`); err != nil {
		return time.Time{}, classify(err)
	}
	return now, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx))
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Postgres SQLSTATE codes we act on.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqAdminShutdown        = "57P01"
	pqCannotConnectNow     = "57P03"
)

// classify maps driver errors onto the repository sentinels. Errors that are
// not driver errors (for example business errors returned from an Atomically
// closure) pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
		case pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		case pqErr.Code.Class() == "08" || pqErr.Code == pqAdminShutdown || pqErr.Code == pqCannotConnectNow:
			return fmt.Errorf("%w: %s", ErrUnavailable, pqErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return err
}

func affectedOne(result sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const dateLayout = "2006-01-02"

// sqlDate renders the calendar date of t in its own location so DATE columns
// do not shift with the session timezone.
func sqlDate(t time.Time) string {
	return t.Format(dateLayout)
}

func sqlDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return sqlDate(*t)
}
