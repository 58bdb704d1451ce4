package service

import (
	"context"
	"fmt"
	"time"

	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/logger"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// activeStatuses are the money request statuses that draw on a limit.
var activeStatuses = []string{domain.MoneyStatusPending, domain.MoneyStatusApproved}

// policy evaluates one eligibility policy against a consistent view of the store.
type policy interface {
	evaluate(ctx context.Context, repos repository.Repositories, employee *domain.Employee, t domain.RequestType, asOf time.Time, loc *time.Location) (*domain.Eligibility, error)
}

// EligibilityService computes how much a request type may still draw.
type EligibilityService struct {
	store    repository.Store
	config   *config.Config
	logger   *zap.Logger
	weekly   weeklyPolicy
	monthly  monthlyPolicy
	policies map[domain.PolicyKind]policy
}

func NewEligibilityService(store repository.Store, cfg *config.Config, log *zap.Logger) *EligibilityService {
	weekly := weeklyPolicy{rate: cfg.GetLunchRatePerDay(), cap: cfg.GetWeeklyLunchCap()}
	monthly := monthlyPolicy{
		midStart: cfg.Business.MidMonthStartDay,
		midEnd:   cfg.Business.MidMonthEndDay,
		grace:    cfg.Business.EndMonthGraceDays,
	}
	return &EligibilityService{
		store:   store,
		config:  cfg,
		logger:  logger.OrNop(log),
		weekly:  weekly,
		monthly: monthly,
		policies: map[domain.PolicyKind]policy{
			domain.PolicyWeekly:        weekly,
			domain.PolicyMonthly:       monthly,
			domain.PolicyDiscretionary: discretionaryPolicy{cap: cfg.GetDiscretionaryCap()},
		},
	}
}

// Evaluate returns the eligibility of requestType for userID at asOf; a zero
// asOf means the store's current time. Calendar-gated types outside their
// window return the evaluation together with an InvalidWindow error.
func (s *EligibilityService) Evaluate(ctx context.Context, userID string, requestType domain.RequestType, asOf time.Time) (*domain.Eligibility, error) {
	if _, err := domain.ParseRequestType(string(requestType)); err != nil {
		return nil, customError.WrapValidation("%v", err)
	}

	asOf, err := s.asOf(ctx, asOf)
	if err != nil {
		return nil, err
	}

	employee, err := getEmployee(ctx, s.store, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}

	e, err := s.evaluate(ctx, s.store, employee, requestType, asOf)
	return e, mapStoreError(err, "")
}

// WeeklyAllowance returns the lunch allowance of the work week containing asOf.
func (s *EligibilityService) WeeklyAllowance(ctx context.Context, userID string, asOf time.Time) (*domain.WeeklyAllowance, error) {
	asOf, err := s.asOf(ctx, asOf)
	if err != nil {
		return nil, err
	}

	employee, err := getEmployee(ctx, s.store, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}

	a, err := s.weekly.allowance(ctx, s.store, userID, asOf, s.location(employee))
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	return a, nil
}

// SalaryPeriod returns the monthly salary position for a salary-family type.
// A closed window is reported through CanRequest, not as an error.
func (s *EligibilityService) SalaryPeriod(ctx context.Context, userID string, requestType domain.RequestType, asOf time.Time) (*domain.MonthlySalaryPeriod, error) {
	if !requestType.IsSalary() {
		return nil, customError.WrapValidation("request type %q is not drawn against salary", requestType)
	}

	asOf, err := s.asOf(ctx, asOf)
	if err != nil {
		return nil, err
	}

	employee, err := getEmployee(ctx, s.store, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}

	period, _, err := s.monthly.position(ctx, s.store, employee, requestType, asOf, s.location(employee))
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	return period, nil
}

func (s *EligibilityService) evaluate(ctx context.Context, repos repository.Repositories, employee *domain.Employee, t domain.RequestType, asOf time.Time) (*domain.Eligibility, error) {
	p, ok := s.policies[t.Policy()]
	if !ok {
		return nil, customError.WrapValidation("no eligibility policy for %q", t)
	}
	e, err := p.evaluate(ctx, repos, employee, t, asOf, s.location(employee))
	if err != nil {
		return e, err
	}
	s.logger.Debug("eligibility evaluated",
		zap.String("user_id", employee.UserID),
		zap.String("request_type", string(t)),
		zap.String("available", e.Available.String()),
		zap.Bool("window_open", e.WindowOpen),
	)
	return e, nil
}

func (s *EligibilityService) asOf(ctx context.Context, asOf time.Time) (time.Time, error) {
	if !asOf.IsZero() {
		return asOf, nil
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		return time.Time{}, mapStoreError(err, "")
	}
	return now, nil
}

// location is the account's calendar; employees without a valid timezone
// use the business timezone.
func (s *EligibilityService) location(employee *domain.Employee) *time.Location {
	if employee != nil && employee.Timezone != "" {
		if loc, err := time.LoadLocation(employee.Timezone); err == nil {
			return loc
		}
	}
	return s.config.Location()
}

type weeklyPolicy struct {
	rate decimal.Decimal
	cap  decimal.Decimal
}

func (p weeklyPolicy) allowance(ctx context.Context, repos repository.Repositories, userID string, asOf time.Time, loc *time.Location) (*domain.WeeklyAllowance, error) {
	start, end := utils.WorkWeek(asOf, loc)

	days, err := repos.Attendance().CountPresent(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	eligible := utils.MinDecimal(p.cap, p.rate.Mul(decimal.NewFromInt(int64(days))))

	// Sunday submissions still count against the week they close.
	requested, err := repos.MoneyRequests().SumCreatedBetween(ctx, userID,
		[]domain.RequestType{domain.TypeLunchRefreshment}, activeStatuses, start, start.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	return &domain.WeeklyAllowance{
		UserID:              userID,
		WeekStart:           start,
		WeekEnd:             end,
		DaysAttended:        days,
		TotalEligibleAmount: eligible,
		AmountRequested:     requested,
		BalanceAvailable:    utils.FloorZero(eligible.Sub(requested)),
	}, nil
}

func (p weeklyPolicy) evaluate(ctx context.Context, repos repository.Repositories, employee *domain.Employee, t domain.RequestType, asOf time.Time, loc *time.Location) (*domain.Eligibility, error) {
	a, err := p.allowance(ctx, repos, employee.UserID, asOf, loc)
	if err != nil {
		return nil, err
	}

	e := &domain.Eligibility{
		UserID:      employee.UserID,
		RequestType: t,
		Policy:      domain.PolicyWeekly,
		Limit:       a.TotalEligibleAmount,
		AlreadyUsed: a.AmountRequested,
		Available:   a.BalanceAvailable,
		WindowOpen:  true,
		WindowStart: a.WeekStart,
		WindowEnd:   a.WeekEnd,
	}

	switch {
	case a.DaysAttended == 0:
		e.Message = "No attendance recorded this week"
	case !a.BalanceAvailable.IsPositive():
		e.Message = "Weekly lunch allowance exhausted"
	default:
		e.Message = fmt.Sprintf("%s available for %d days attended this week",
			a.BalanceAvailable.StringFixed(0), a.DaysAttended)
	}
	return e, nil
}

type monthlyPolicy struct {
	midStart int
	midEnd   int
	grace    int
}

type salaryWindow struct {
	period time.Time
	open   bool
	start  time.Time
	end    time.Time
}

func (p monthlyPolicy) window(t domain.RequestType, asOf time.Time, loc *time.Location) salaryWindow {
	month := utils.MonthStart(asOf, loc)

	switch t {
	case domain.TypeMidMonth:
		return salaryWindow{
			period: month,
			open:   utils.InMidMonthWindow(asOf, loc, p.midStart, p.midEnd),
			start:  month.AddDate(0, 0, p.midStart-1),
			end:    month.AddDate(0, 0, p.midEnd).Add(-time.Nanosecond),
		}
	case domain.TypeEndMonth:
		period, open := utils.EndMonthPeriod(asOf, loc, p.grace)
		if !open {
			period = month
		}
		next := period.AddDate(0, 1, 0)
		return salaryWindow{
			period: period,
			open:   open,
			start:  next.AddDate(0, 0, -1),
			end:    next.AddDate(0, 0, p.grace).Add(-time.Nanosecond),
		}
	}

	return salaryWindow{
		period: month,
		open:   true,
		start:  month,
		end:    month.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

func (p monthlyPolicy) closedMessage(t domain.RequestType) string {
	if t == domain.TypeMidMonth {
		return fmt.Sprintf("Mid-month requests are only accepted between day %d and day %d of the month", p.midStart, p.midEnd)
	}
	return fmt.Sprintf("End-month requests are only accepted from the last day of the month to day %d of the next month", p.grace)
}

func (p monthlyPolicy) position(ctx context.Context, repos repository.Repositories, employee *domain.Employee, t domain.RequestType, asOf time.Time, loc *time.Location) (*domain.MonthlySalaryPeriod, salaryWindow, error) {
	w := p.window(t, asOf, loc)

	adjustment, err := repos.Payroll().GetAdjustment(ctx, employee.UserID, w.period)
	if err != nil {
		return nil, w, err
	}
	if adjustment == nil {
		adjustment = &domain.PayrollAdjustment{UserID: employee.UserID, PeriodMonth: w.period}
	}

	base := employee.Salary.
		Sub(adjustment.PaidLastMonth).
		Sub(adjustment.AdvancesOwed).
		Add(adjustment.OvertimeEarned)

	requested, err := repos.MoneyRequests().SumForPeriod(ctx, employee.UserID, []domain.RequestType{t}, activeStatuses, w.period)
	if err != nil {
		return nil, w, err
	}

	period := &domain.MonthlySalaryPeriod{
		UserID:           employee.UserID,
		RequestType:      t,
		PeriodMonth:      w.period,
		Salary:           employee.Salary,
		PaidLastMonth:    adjustment.PaidLastMonth,
		AdvancesOwed:     adjustment.AdvancesOwed,
		OvertimeEarned:   adjustment.OvertimeEarned,
		BaseAvailable:    base,
		AlreadyRequested: requested,
		AvailableAmount:  utils.FloorZero(base.Sub(requested)),
		CanRequest:       w.open,
	}

	switch {
	case !w.open:
		period.Message = p.closedMessage(t)
	case !period.AvailableAmount.IsPositive():
		period.Message = fmt.Sprintf("Salary limit for %s is exhausted", w.period.Format("January 2006"))
	default:
		period.Message = fmt.Sprintf("You can request up to %s for %s",
			period.AvailableAmount.StringFixed(0), w.period.Format("January 2006"))
	}

	return period, w, nil
}

func (p monthlyPolicy) evaluate(ctx context.Context, repos repository.Repositories, employee *domain.Employee, t domain.RequestType, asOf time.Time, loc *time.Location) (*domain.Eligibility, error) {
	period, w, err := p.position(ctx, repos, employee, t, asOf, loc)
	if err != nil {
		return nil, err
	}

	month := w.period
	e := &domain.Eligibility{
		UserID:      employee.UserID,
		RequestType: t,
		Policy:      domain.PolicyMonthly,
		Limit:       period.BaseAvailable,
		AlreadyUsed: period.AlreadyRequested,
		Available:   period.AvailableAmount,
		WindowOpen:  w.open,
		WindowStart: w.start,
		WindowEnd:   w.end,
		PeriodMonth: &month,
		Message:     period.Message,
	}
	if !w.open {
		return e, customError.WrapInvalidWindow(period.Message)
	}
	return e, nil
}

// discretionaryPolicy caps bonus and expense requests per calendar month.
type discretionaryPolicy struct {
	cap decimal.Decimal
}

func (p discretionaryPolicy) evaluate(ctx context.Context, repos repository.Repositories, employee *domain.Employee, t domain.RequestType, asOf time.Time, loc *time.Location) (*domain.Eligibility, error) {
	start := utils.MonthStart(asOf, loc)
	next := start.AddDate(0, 1, 0)

	used, err := repos.MoneyRequests().SumCreatedBetween(ctx, employee.UserID, []domain.RequestType{t}, activeStatuses, start, next)
	if err != nil {
		return nil, err
	}

	e := &domain.Eligibility{
		UserID:      employee.UserID,
		RequestType: t,
		Policy:      domain.PolicyDiscretionary,
		Limit:       p.cap,
		AlreadyUsed: used,
		Available:   utils.FloorZero(p.cap.Sub(used)),
		WindowOpen:  true,
		WindowStart: start,
		WindowEnd:   next.Add(-time.Nanosecond),
	}
	if e.Available.IsPositive() {
		e.Message = fmt.Sprintf("%s available for %s this month", e.Available.StringFixed(0), t)
	} else {
		e.Message = fmt.Sprintf("Monthly %s limit exhausted", t)
	}
	return e, nil
}
