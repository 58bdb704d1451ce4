package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/service"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/response"
	"github.com/segyhp/ledger-engine/pkg/validation"
	"github.com/shopspring/decimal"
)

// PayrollHandler feeds employee profiles, attendance and payroll inputs.
type PayrollHandler struct {
	payroll   *service.PayrollService
	validator *validator.Validate
	loc       *time.Location
}

func NewPayrollHandler(payroll *service.PayrollService, loc *time.Location) *PayrollHandler {
	return &PayrollHandler{payroll: payroll, validator: validation.New(), loc: loc}
}

func (h *PayrollHandler) RegisterEmployee(w http.ResponseWriter, r *http.Request) {
	var body employeeBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	salary, err := parseAmount(body.Salary)
	if err != nil {
		writeError(w, err)
		return
	}

	employee := &domain.Employee{
		UserID:     body.UserID,
		FullName:   body.FullName,
		Department: body.Department,
		Salary:     salary,
		Timezone:   body.Timezone,
	}
	if err := h.payroll.RegisterEmployee(r.Context(), employee); err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, employee)
}

func (h *PayrollHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.payroll.ListEmployees(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, employees)
}

func (h *PayrollHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var body attendanceBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	day, err := parseTime(body.Date, h.loc)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.payroll.RecordAttendance(r.Context(), body.UserID, day, body.Status); err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, map[string]string{"user_id": body.UserID, "date": body.Date})
}

func (h *PayrollHandler) SetAdjustment(w http.ResponseWriter, r *http.Request) {
	var body adjustmentBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	month, err := time.ParseInLocation("2006-01", body.PeriodMonth, h.loc)
	if err != nil {
		writeError(w, customError.WrapValidation("period_month %q must look like 2006-01", body.PeriodMonth))
		return
	}

	adjustment := &domain.PayrollAdjustment{
		UserID:         body.UserID,
		PeriodMonth:    month,
		PaidLastMonth:  orZero(body.PaidLastMonth),
		AdvancesOwed:   orZero(body.AdvancesOwed),
		OvertimeEarned: orZero(body.OvertimeEarned),
	}
	if err := h.payroll.SetAdjustment(r.Context(), adjustment); err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, adjustment)
}

// orZero parses an already validated optional amount.
func orZero(raw json.Number) decimal.Decimal {
	d, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
