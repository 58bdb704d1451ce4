package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segyhp/ledger-engine/internal/domain"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEligibilityEndpoints(t *testing.T) {
	s := newServer(t)
	s.employee(t, "u1", 1040000)

	w := s.do(t, http.MethodGet, "/api/v1/accounts/u1/eligibility?type=mid-month", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mid := envelope[domain.Eligibility](t, w)
	assert.True(t, mid.WindowOpen)
	assert.Equal(t, "1040000", mid.Available.String())

	w = s.do(t, http.MethodGet, "/api/v1/accounts/u1/eligibility?type=end-month", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, envelope[domain.Eligibility](t, w).WindowOpen)

	w = s.do(t, http.MethodGet, "/api/v1/accounts/u1/salary-period?type=end-month&as_of=2026-10-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	period := envelope[domain.MonthlySalaryPeriod](t, w)
	assert.True(t, period.CanRequest)
	assert.Equal(t, "2026-10", period.PeriodMonth.Format("2006-01"))

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"missing type", "/api/v1/accounts/u1/eligibility", http.StatusBadRequest},
		{"bad as_of", "/api/v1/accounts/u1/eligibility?type=bonus&as_of=yesterday", http.StatusBadRequest},
		{"non-salary period", "/api/v1/accounts/u1/salary-period?type=lunch_refreshment", http.StatusBadRequest},
		{"unknown account", "/api/v1/accounts/ghost/snapshot", http.StatusNotFound},
		{"unknown account allowance", "/api/v1/accounts/ghost/weekly-allowance", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, s.do(t, http.MethodGet, tt.path, nil).Code)
		})
	}
}

func TestPayrollEndpoints(t *testing.T) {
	s := newServer(t)
	s.employee(t, "u1", 1000000)

	w := s.do(t, http.MethodPost, "/api/v1/employees", map[string]any{"user_id": "u1", "full_name": "Again", "salary": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/payroll-adjustments", map[string]any{
		"user_id":         "u1",
		"period_month":    "2026-10",
		"overtime_earned": "50000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	period := envelope[domain.MonthlySalaryPeriod](t, s.do(t, http.MethodGet, "/api/v1/accounts/u1/salary-period?type=mid-month", nil))
	assert.Equal(t, "1050000", period.AvailableAmount.String())

	w = s.do(t, http.MethodPost, "/api/v1/attendance", map[string]string{"user_id": "u1", "date": "14/10/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/payroll-adjustments", map[string]any{"user_id": "ghost", "period_month": "2026-10"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.employee(t, "a0", 500000)
	employees := envelope[[]domain.Employee](t, s.do(t, http.MethodGet, "/api/v1/employees", nil))
	require.Len(t, employees, 2)
	assert.Equal(t, "a0", employees[0].UserID)
	assert.Equal(t, "u1", employees[1].UserID)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)

	w := s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := envelope[HealthStatus](t, w)
	assert.Equal(t, "ok", status.Checks["database"])
	assert.NotContains(t, status.Checks, "redis")

	s.employee(t, "u1", 1040000)
	s.credit(t, "u1", 50000)
	s.created(t, s.do(t, http.MethodPost, "/api/v1/withdrawals", map[string]any{"user_id": "u1", "amount": 1000, "channel": "CASH"}))

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ledger_requests_submitted_total{kind="withdrawal",type="CASH"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		customError.ErrCodeValidation:            http.StatusBadRequest,
		customError.ErrCodeNotFound:              http.StatusNotFound,
		customError.ErrCodeInvalidWindow:         http.StatusUnprocessableEntity,
		customError.ErrCodeInsufficientBalance:   http.StatusUnprocessableEntity,
		customError.ErrCodeInsufficientAllowance: http.StatusUnprocessableEntity,
		customError.ErrCodeInvalidTransition:     http.StatusConflict,
		customError.ErrCodeConcurrencyConflict:   http.StatusConflict,
		customError.ErrCodeStorageUnavailable:    http.StatusServiceUnavailable,
		customError.ErrCodeDatabaseError:         http.StatusInternalServerError,
		customError.ErrCodeInternal:              http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, statusFor(code), code)
	}
}

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := Recover(log)(AccessLog(log)(panicking))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic serving request").Len())

	ok := AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) }))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/money-requests", nil))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusAccepted), entries[0].ContextMap()["status"])
}

func TestAccountHistoryEndpoints(t *testing.T) {
	s := newServer(t)
	s.employee(t, "u1", 1000000)
	s.employee(t, "u2", 1000000)
	s.credit(t, "u1", 50000)

	withdrawalID := s.created(t, s.do(t, http.MethodPost, "/api/v1/withdrawals", map[string]any{
		"user_id": "u1", "amount": "20000", "channel": "CASH",
	}))
	w := s.do(t, http.MethodPost, "/api/v1/withdrawals/"+withdrawalID+"/approve", map[string]string{"actor": "a1", "role": "finance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	moneyID := s.created(t, s.do(t, http.MethodPost, "/api/v1/money-requests", map[string]any{
		"user_id": "u1", "amount": "20000", "request_type": "advance", "payment_channel": "CASH",
	}))

	w = s.do(t, http.MethodGet, "/api/v1/accounts/u1/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entries := envelope[[]domain.LedgerEntry](t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryCredit, entries[0].EntryType)
	assert.Equal(t, domain.EntryDebit, entries[1].EntryType)
	assert.Equal(t, "-20000", entries[1].Amount.String())

	withdrawals := envelope[[]domain.WithdrawalRequest](t, s.do(t, http.MethodGet, "/api/v1/accounts/u1/withdrawals", nil))
	require.Len(t, withdrawals, 1)
	assert.Equal(t, withdrawalID, withdrawals[0].ID.String())
	assert.Equal(t, domain.WithdrawalCompleted, withdrawals[0].Status)

	requests := envelope[[]domain.MoneyRequest](t, s.do(t, http.MethodGet, "/api/v1/accounts/u1/money-requests", nil))
	require.Len(t, requests, 1)
	assert.Equal(t, moneyID, requests[0].ID.String())

	w = s.do(t, http.MethodGet, "/api/v1/accounts/u2/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	for _, path := range []string{"ledger", "money-requests", "withdrawals"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/accounts/ghost/"+path, nil).Code)
		})
	}
}
