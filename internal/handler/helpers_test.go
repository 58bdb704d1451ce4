package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/segyhp/ledger-engine/internal/cache"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository/memory"
	"github.com/segyhp/ledger-engine/internal/service"
	"github.com/segyhp/ledger-engine/pkg/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// wednesday of the Oct 12 2026 work week, inside the mid-month window
var wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type server struct {
	router *mux.Router
	store  *memory.Store
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg := config.Default()
	cfg.Business.Timezone = "UTC"
	cfg.Scheduler.Timezone = "UTC"

	store := memory.New(func() time.Time { return wednesday })
	m := metrics.NewCollector()

	eligibility := service.NewEligibilityService(store, cfg, nil)
	requests := service.NewRequestService(store, eligibility, cache.NewMemoryIdempotencyStore(time.Hour), cfg, nil, m)
	approvals := service.NewApprovalService(store, cfg, nil, m)

	router := NewRouter(Handlers{
		Health:   NewHealthHandler(store, nil, time.Second),
		Accounts: NewAccountHandler(service.NewBalanceService(store, nil), eligibility, cfg.Location()),
		Requests: NewRequestHandler(requests, approvals),
		Workflow: NewWorkflowHandler(service.NewAuditService(store, nil)),
		Payroll:  NewPayrollHandler(service.NewPayrollService(store, cfg, nil, m), cfg.Location()),
		Metrics:  m.Handler(),
	}, nil)

	return &server{router: router, store: store}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// envelope decodes the data field of a success response.
func envelope[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	require.True(t, body.Success, w.Body.String())
	return body.Data
}

type failure struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func failed(t *testing.T, w *httptest.ResponseRecorder) failure {
	t.Helper()
	var body failure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	require.False(t, body.Success)
	return body
}

func (s *server) employee(t *testing.T, userID string, salary int64) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/employees", map[string]any{
		"user_id":   userID,
		"full_name": "Employee " + userID,
		"salary":    salary,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *server) credit(t *testing.T, userID string, value int64) {
	t.Helper()
	require.NoError(t, s.store.Ledger().Append(context.Background(),
		domain.NewCredit(userID, decimal.NewFromInt(value), "seed:"+userID, wednesday)))
}

func (s *server) created(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return envelope[createdBody](t, w).ID
}
