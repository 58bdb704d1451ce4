package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/ledger-engine/internal/domain"
)

type employeeRepository struct {
	db sqlx.ExtContext
}

func NewEmployeeRepository(db sqlx.ExtContext) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Create(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (user_id, full_name, department, salary, timezone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		employee.UserID,
		employee.FullName,
		employee.Department,
		employee.Salary,
		employee.Timezone,
		employee.CreatedAt,
	)

	return classify(err)
}

func (r *employeeRepository) GetByUserID(ctx context.Context, userID string) (*domain.Employee, error) {
	query := `
		SELECT user_id, full_name, department, salary, timezone, created_at
		FROM employees
		WHERE user_id = $1
	`

	var employee domain.Employee
	if err := sqlx.GetContext(ctx, r.db, &employee, query, userID); err != nil {
		return nil, classify(err)
	}

	return &employee, nil
}

func (r *employeeRepository) List(ctx context.Context) ([]*domain.Employee, error) {
	query := `
		SELECT user_id, full_name, department, salary, timezone, created_at
		FROM employees
		ORDER BY user_id
	`

	var employees []*domain.Employee
	if err := sqlx.SelectContext(ctx, r.db, &employees, query); err != nil {
		return nil, classify(err)
	}

	return employees, nil
}

type attendanceRepository struct {
	db sqlx.ExtContext
}

func NewAttendanceRepository(db sqlx.ExtContext) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Record(ctx context.Context, attendance *domain.Attendance) error {
	query := `
		INSERT INTO attendance (user_id, attendance_date, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, attendance_date) DO UPDATE SET status = EXCLUDED.status
	`

	_, err := r.db.ExecContext(ctx, query, attendance.UserID, sqlDate(attendance.Date), attendance.Status)
	return classify(err)
}

func (r *attendanceRepository) CountPresent(ctx context.Context, userID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT attendance_date)
		FROM attendance
		WHERE user_id = $1 AND status = $2 AND attendance_date BETWEEN $3 AND $4
	`

	var days int
	if err := sqlx.GetContext(ctx, r.db, &days, query, userID, domain.AttendancePresent, sqlDate(from), sqlDate(to)); err != nil {
		return 0, classify(err)
	}

	return days, nil
}

func (r *attendanceRepository) PresentOn(ctx context.Context, day time.Time) ([]string, error) {
	query := `
		SELECT user_id
		FROM attendance
		WHERE attendance_date = $1 AND status = $2
		ORDER BY user_id
	`

	var users []string
	if err := sqlx.SelectContext(ctx, r.db, &users, query, sqlDate(day), domain.AttendancePresent); err != nil {
		return nil, classify(err)
	}

	return users, nil
}

type payrollRepository struct {
	db sqlx.ExtContext
}

func NewPayrollRepository(db sqlx.ExtContext) PayrollRepository {
	return &payrollRepository{db: db}
}

func (r *payrollRepository) Upsert(ctx context.Context, adjustment *domain.PayrollAdjustment) error {
	query := `
		INSERT INTO payroll_adjustments (user_id, period_month, paid_last_month, advances_owed, overtime_earned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, period_month) DO UPDATE
		SET paid_last_month = EXCLUDED.paid_last_month,
		    advances_owed = EXCLUDED.advances_owed,
		    overtime_earned = EXCLUDED.overtime_earned
	`

	_, err := r.db.ExecContext(ctx, query,
		adjustment.UserID,
		sqlDate(adjustment.PeriodMonth),
		adjustment.PaidLastMonth,
		adjustment.AdvancesOwed,
		adjustment.OvertimeEarned,
	)

	return classify(err)
}

func (r *payrollRepository) GetAdjustment(ctx context.Context, userID string, periodMonth time.Time) (*domain.PayrollAdjustment, error) {
	query := `
		SELECT user_id, period_month, paid_last_month, advances_owed, overtime_earned
		FROM payroll_adjustments
		WHERE user_id = $1 AND period_month = $2
	`

	var adjustment domain.PayrollAdjustment
	err := sqlx.GetContext(ctx, r.db, &adjustment, query, userID, sqlDate(periodMonth))
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &adjustment, nil
}

// typesArray converts request types for an ANY($n) parameter.
func typesArray(types []domain.RequestType) interface{} {
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}
	return pq.Array(values)
}
