package handler

import "encoding/json"

type moneyRequestBody struct {
	UserID         string      `json:"user_id" validate:"required,max=64"`
	Amount         json.Number `json:"amount" validate:"required,decimal_gt=0"`
	RequestType    string      `json:"request_type" validate:"required"`
	Reason         string      `json:"reason" validate:"max=500"`
	PaymentChannel string      `json:"payment_channel" validate:"required,oneof=CASH MOBILE_MONEY"`
	PhoneNumber    string      `json:"phone_number" validate:"omitempty,msisdn"`
}

type withdrawalBody struct {
	UserID      string      `json:"user_id" validate:"required,max=64"`
	Amount      json.Number `json:"amount" validate:"required,decimal_gt=0"`
	Channel     string      `json:"channel" validate:"required,oneof=ZENGAPAY CASH"`
	PhoneNumber string      `json:"phone_number" validate:"omitempty,msisdn"`
}

type approvalRequestBody struct {
	RequestedBy string          `json:"requestedby" validate:"required,max=64"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Amount      json.Number     `json:"amount" validate:"required,decimal_gt=0"`
	Department  string          `json:"department"`
	Priority    string          `json:"priority" validate:"max=20"`
	Type        string          `json:"type"`
	Details     json.RawMessage `json:"details"`
}

type decisionBody struct {
	Actor string `json:"actor" validate:"required"`
	Role  string `json:"role" validate:"required,oneof=admin finance"`
}

type rejectionBody struct {
	Actor    string `json:"actor" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin finance"`
	Reason   string `json:"reason" validate:"required"`
	Comments string `json:"comments" validate:"max=1000"`
}

type modificationRequestBody struct {
	Actor    string `json:"actor" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin finance"`
	Comments string `json:"comments" validate:"max=1000"`
}

type modifyBody struct {
	Actor       string      `json:"actor" validate:"required"`
	Amount      json.Number `json:"amount" validate:"omitempty,decimal_gt=0"`
	Description *string     `json:"description"`
	Comments    string      `json:"comments" validate:"max=1000"`
}

type actorBody struct {
	Actor string `json:"actor" validate:"required"`
}

type completionBody struct {
	Actor                string `json:"actor" validate:"required"`
	TransactionReference string `json:"transaction_reference" validate:"required"`
}

type failureBody struct {
	Actor         string `json:"actor" validate:"required"`
	FailureReason string `json:"failure_reason" validate:"required"`
}

type employeeBody struct {
	UserID     string      `json:"user_id" validate:"required,max=64"`
	FullName   string      `json:"full_name" validate:"required"`
	Department string      `json:"department"`
	Salary     json.Number `json:"salary" validate:"required,decimal_gte=0"`
	Timezone   string      `json:"timezone"`
}

type attendanceBody struct {
	UserID string `json:"user_id" validate:"required"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Status string `json:"status" validate:"omitempty,oneof=present absent leave"`
}

type adjustmentBody struct {
	UserID         string      `json:"user_id" validate:"required"`
	PeriodMonth    string      `json:"period_month" validate:"required,datetime=2006-01"`
	PaidLastMonth  json.Number `json:"paid_last_month" validate:"omitempty,decimal_gte=0"`
	AdvancesOwed   json.Number `json:"advances_owed" validate:"omitempty,decimal_gte=0"`
	OvertimeEarned json.Number `json:"overtime_earned" validate:"omitempty,decimal_gte=0"`
}
