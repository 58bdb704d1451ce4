package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/metrics"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayrollService maintains employee profiles and attendance and turns
// attended days into salary credits on the ledger.
type PayrollService struct {
	runner
	config *config.Config
}

func NewPayrollService(store repository.Store, cfg *config.Config, log *zap.Logger, m *metrics.Collector) *PayrollService {
	return &PayrollService{
		runner: newRunner(store, cfg.Business.MaxConflictRetries, log, m),
		config: cfg,
	}
}

// DailySalaryCredit is the amount one attended day earns on salary.
func (s *PayrollService) DailySalaryCredit(salary decimal.Decimal) decimal.Decimal {
	return utils.DailySalaryCredit(salary, s.config.Business.WorkingDaysPerMonth)
}

func salaryReference(userID string, day time.Time) string {
	return fmt.Sprintf("salary:%s:%s", userID, day.Format("2006-01-02"))
}

// CreditDay appends one salary credit for every employee present on day and
// returns how many credits were written. Reruns for the same day are no-ops.
func (s *PayrollService) CreditDay(ctx context.Context, day time.Time) (int, error) {
	day = utils.StartOfDay(day, s.config.Location())

	users, err := s.store.Attendance().PresentOn(ctx, day)
	if err != nil {
		return 0, mapStoreError(err, "")
	}

	credited := 0
	var errs []error
	for _, userID := range users {
		ok, err := s.creditEmployee(ctx, userID, day)
		if err != nil {
			s.logger.Error("salary credit failed",
				zap.String("user_id", userID),
				zap.Time("day", day),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", userID, err))
			continue
		}
		if ok {
			credited++
		}
	}

	s.logger.Info("salary credits written",
		zap.Time("day", day),
		zap.Int("present", len(users)),
		zap.Int("credited", credited),
	)
	return credited, errors.Join(errs...)
}

func (s *PayrollService) creditEmployee(ctx context.Context, userID string, day time.Time) (bool, error) {
	reference := salaryReference(userID, day)
	credited := false

	err := s.atomically(ctx, repository.AccountLockKey(userID), func(repos repository.Repositories) error {
		exists, err := repos.Ledger().ExistsReference(ctx, reference)
		if err != nil || exists {
			return err
		}

		employee, err := getEmployee(ctx, repos, userID)
		if err != nil {
			return err
		}

		amount := s.DailySalaryCredit(employee.Salary)
		if !amount.IsPositive() {
			return nil
		}

		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		entry := domain.NewCredit(userID, amount, reference, now)
		entry.Metadata = fmt.Sprintf(`{"source":"daily_salary","day":"%s"}`, day.Format("2006-01-02"))
		if err := repos.Ledger().Append(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil
			}
			return err
		}
		credited = true
		return nil
	})
	return credited, err
}

// RegisterEmployee creates an account holder.
func (s *PayrollService) RegisterEmployee(ctx context.Context, employee *domain.Employee) error {
	if employee == nil || employee.UserID == "" {
		return customError.WrapValidation("user_id is required")
	}
	if employee.Salary.IsNegative() {
		return customError.WrapValidation("salary must not be negative")
	}
	if employee.Timezone != "" {
		if _, err := time.LoadLocation(employee.Timezone); err != nil {
			return customError.WrapValidation("timezone %q is invalid", employee.Timezone)
		}
	}
	if employee.CreatedAt.IsZero() {
		now, err := s.now(ctx)
		if err != nil {
			return err
		}
		employee.CreatedAt = now
	}

	err := s.store.Employees().Create(ctx, employee)
	if errors.Is(err, repository.ErrDuplicate) {
		return customError.WrapValidation("employee %s already exists", employee.UserID)
	}
	return mapStoreError(err, "")
}

// ListEmployees returns every account holder ordered by user id.
func (s *PayrollService) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	employees, err := s.store.Employees().List(ctx)
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	return employees, nil
}

// RecordAttendance marks userID with status on the given calendar day.
func (s *PayrollService) RecordAttendance(ctx context.Context, userID string, day time.Time, status string) error {
	if _, err := getEmployee(ctx, s.store, userID); err != nil {
		return mapStoreError(err, "")
	}
	if status == "" {
		status = domain.AttendancePresent
	}
	attendance := &domain.Attendance{
		UserID: userID,
		Date:   utils.StartOfDay(day, s.config.Location()),
		Status: status,
	}
	return mapStoreError(s.store.Attendance().Record(ctx, attendance), "")
}

// SetAdjustment stores the payroll inputs of one salary month.
func (s *PayrollService) SetAdjustment(ctx context.Context, adjustment *domain.PayrollAdjustment) error {
	if adjustment == nil || adjustment.UserID == "" {
		return customError.WrapValidation("user_id is required")
	}
	if _, err := getEmployee(ctx, s.store, adjustment.UserID); err != nil {
		return mapStoreError(err, "")
	}
	adjustment.PeriodMonth = utils.MonthStart(adjustment.PeriodMonth, s.config.Location())
	return mapStoreError(s.store.Payroll().Upsert(ctx, adjustment), "")
}
