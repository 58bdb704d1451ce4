package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/cache"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository/memory"
	"github.com/segyhp/ledger-engine/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	now         time.Time
	cfg         *config.Config
	store       *memory.Store
	metrics     *metrics.Collector
	balances    *BalanceService
	eligibility *EligibilityService
	requests    *RequestService
	approvals   *ApprovalService
	audit       *AuditService
	payroll     *PayrollService
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Business.Timezone = "UTC"
	cfg.Scheduler.Timezone = "UTC"
	return cfg
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	f := &fixture{now: now, cfg: testConfig(), metrics: metrics.NewCollector()}
	f.store = memory.New(func() time.Time { return f.now })
	f.balances = NewBalanceService(f.store, nil)
	f.eligibility = NewEligibilityService(f.store, f.cfg, nil)
	f.requests = NewRequestService(f.store, f.eligibility, cache.NewMemoryIdempotencyStore(time.Hour), f.cfg, nil, f.metrics)
	f.approvals = NewApprovalService(f.store, f.cfg, nil, f.metrics)
	f.audit = NewAuditService(f.store, nil)
	f.payroll = NewPayrollService(f.store, f.cfg, nil, f.metrics)
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (f *fixture) employee(t *testing.T, userID string, salary int64) {
	t.Helper()
	require.NoError(t, f.payroll.RegisterEmployee(context.Background(), &domain.Employee{
		UserID:     userID,
		FullName:   "Employee " + userID,
		Department: "Operations",
		Salary:     amount(salary),
	}))
}

func (f *fixture) credit(t *testing.T, userID string, value int64, reference string) {
	t.Helper()
	require.NoError(t, f.store.Ledger().Append(context.Background(),
		domain.NewCredit(userID, amount(value), reference, f.now)))
}

func (f *fixture) attend(t *testing.T, userID string, days ...time.Time) {
	t.Helper()
	for _, d := range days {
		require.NoError(t, f.payroll.RecordAttendance(context.Background(), userID, d, domain.AttendancePresent))
	}
}

func (f *fixture) submitMoney(userID string, requestType domain.RequestType, value int64) (string, error) {
	return f.requests.Submit(context.Background(), domain.KindMoney, userID, amount(value), domain.MoneyRequestPayload{
		RequestType:    requestType,
		Reason:         "test",
		PaymentChannel: domain.ChannelCash,
	})
}

func (f *fixture) submitWithdrawal(userID string, channel domain.WithdrawalChannel, value int64) (string, error) {
	payload := domain.WithdrawalPayload{Channel: channel}
	if channel == domain.WithdrawalZengaPay {
		payload.PhoneNumber = "0772123456"
	}
	return f.requests.Submit(context.Background(), domain.KindWithdrawal, userID, amount(value), payload)
}

func (f *fixture) snapshot(t *testing.T, userID string) *domain.AccountSnapshot {
	t.Helper()
	s, err := f.balances.GetAccountSnapshot(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func actions(steps []*domain.WorkflowStep) []domain.WorkflowAction {
	out := make([]domain.WorkflowAction, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Action)
	}
	return out
}

func mustParse(t *testing.T, id string) uuid.UUID {
	t.Helper()
	u, err := uuid.Parse(id)
	require.NoError(t, err)
	return u
}
