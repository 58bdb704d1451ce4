package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segyhp/ledger-engine/pkg/logger"
	"go.uber.org/zap"
)

// Handlers groups everything mounted by NewRouter. Metrics may be nil.
type Handlers struct {
	Health   *HealthHandler
	Accounts *AccountHandler
	Requests *RequestHandler
	Workflow *WorkflowHandler
	Payroll  *PayrollHandler
	Metrics  http.Handler
}

func NewRouter(h Handlers, log *zap.Logger) *mux.Router {
	log = logger.OrNop(log)
	router := mux.NewRouter()
	router.Use(Recover(log), AccessLog(log))

	// Health check
	router.HandleFunc("/health", h.Health.Health).Methods("GET")
	router.HandleFunc("/health/ready", h.Health.Ready).Methods("GET")
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/accounts/{userId}/snapshot", h.Accounts.Snapshot).Methods("GET")
	api.HandleFunc("/accounts/{userId}/eligibility", h.Accounts.Eligibility).Methods("GET")
	api.HandleFunc("/accounts/{userId}/weekly-allowance", h.Accounts.WeeklyAllowance).Methods("GET")
	api.HandleFunc("/accounts/{userId}/salary-period", h.Accounts.SalaryPeriod).Methods("GET")
	api.HandleFunc("/accounts/{userId}/ledger", h.Accounts.Ledger).Methods("GET")
	api.HandleFunc("/accounts/{userId}/money-requests", h.Requests.ListMoneyRequests).Methods("GET")
	api.HandleFunc("/accounts/{userId}/withdrawals", h.Requests.ListWithdrawals).Methods("GET")

	api.HandleFunc("/money-requests", h.Requests.CreateMoneyRequest).Methods("POST")
	api.HandleFunc("/money-requests/{id}", h.Requests.GetMoneyRequest).Methods("GET")
	api.HandleFunc("/money-requests/{id}/approve", h.Requests.ApproveMoneyRequest).Methods("POST")
	api.HandleFunc("/money-requests/{id}/reject", h.Requests.RejectMoneyRequest).Methods("POST")

	api.HandleFunc("/withdrawals", h.Requests.CreateWithdrawal).Methods("POST")
	api.HandleFunc("/withdrawals/{id}", h.Requests.GetWithdrawal).Methods("GET")
	api.HandleFunc("/withdrawals/{id}/approve", h.Requests.ApproveWithdrawal).Methods("POST")
	api.HandleFunc("/withdrawals/{id}/reject", h.Requests.RejectWithdrawal).Methods("POST")
	api.HandleFunc("/withdrawals/{id}/process", h.Requests.ProcessWithdrawal).Methods("POST")
	api.HandleFunc("/withdrawals/{id}/complete", h.Requests.CompleteWithdrawal).Methods("POST")
	api.HandleFunc("/withdrawals/{id}/fail", h.Requests.FailWithdrawal).Methods("POST")

	api.HandleFunc("/approval-requests", h.Requests.CreateApprovalRequest).Methods("POST")
	api.HandleFunc("/approval-requests/{id}", h.Requests.GetApprovalRequest).Methods("GET")
	api.HandleFunc("/approval-requests/{id}/approve", h.Requests.ApproveApprovalRequest).Methods("POST")
	api.HandleFunc("/approval-requests/{id}/reject", h.Requests.RejectApprovalRequest).Methods("POST")
	api.HandleFunc("/approval-requests/{id}/request-modification", h.Requests.RequestModification).Methods("POST")
	api.HandleFunc("/approval-requests/{id}/modify", h.Requests.ModifyApprovalRequest).Methods("POST")

	api.HandleFunc("/workflow/{id}", h.Workflow.History).Methods("GET")

	api.HandleFunc("/employees", h.Payroll.RegisterEmployee).Methods("POST")
	api.HandleFunc("/employees", h.Payroll.ListEmployees).Methods("GET")
	api.HandleFunc("/attendance", h.Payroll.RecordAttendance).Methods("POST")
	api.HandleFunc("/payroll-adjustments", h.Payroll.SetAdjustment).Methods("PUT")

	return router
}
