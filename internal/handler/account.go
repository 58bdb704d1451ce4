package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/service"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/response"
)

// AccountHandler serves the derived balance and eligibility views.
type AccountHandler struct {
	balance     *service.BalanceService
	eligibility *service.EligibilityService
	loc         *time.Location
}

func NewAccountHandler(balance *service.BalanceService, eligibility *service.EligibilityService, loc *time.Location) *AccountHandler {
	return &AccountHandler{balance: balance, eligibility: eligibility, loc: loc}
}

func (h *AccountHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.balance.GetAccountSnapshot(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, snapshot)
}

func (h *AccountHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.balance.Ledger(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, entries)
}

// Eligibility evaluates ?type= for the account. A closed window is still a
// 200 carrying window_open=false.
func (h *AccountHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	requestType, asOf, err := h.query(r)
	if err != nil {
		writeError(w, err)
		return
	}

	e, err := h.eligibility.Evaluate(r.Context(), mux.Vars(r)["userId"], requestType, asOf)
	if err != nil && customError.Kind(err) != customError.ErrCodeInvalidWindow {
		writeError(w, err)
		return
	}
	response.Success(w, e)
}

func (h *AccountHandler) WeeklyAllowance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseTime(r.URL.Query().Get("as_of"), h.loc)
	if err != nil {
		writeError(w, err)
		return
	}

	allowance, err := h.eligibility.WeeklyAllowance(r.Context(), mux.Vars(r)["userId"], asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, allowance)
}

func (h *AccountHandler) SalaryPeriod(w http.ResponseWriter, r *http.Request) {
	requestType, asOf, err := h.query(r)
	if err != nil {
		writeError(w, err)
		return
	}

	period, err := h.eligibility.SalaryPeriod(r.Context(), mux.Vars(r)["userId"], requestType, asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, period)
}

func (h *AccountHandler) query(r *http.Request) (domain.RequestType, time.Time, error) {
	q := r.URL.Query()
	requestType, err := domain.ParseRequestType(q.Get("type"))
	if err != nil {
		return "", time.Time{}, customError.WrapValidation("%v", err)
	}
	asOf, err := parseTime(q.Get("as_of"), h.loc)
	if err != nil {
		return "", time.Time{}, err
	}
	return requestType, asOf, nil
}
