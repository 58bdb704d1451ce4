package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/service"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/response"
	"github.com/segyhp/ledger-engine/pkg/validation"
	"github.com/shopspring/decimal"
)

// RequestHandler serves submission, lookup and approval of money requests,
// withdrawals and generic approval requests.
type RequestHandler struct {
	requests  *service.RequestService
	approvals *service.ApprovalService
	validator *validator.Validate
}

func NewRequestHandler(requests *service.RequestService, approvals *service.ApprovalService) *RequestHandler {
	return &RequestHandler{
		requests:  requests,
		approvals: approvals,
		validator: validation.New(),
	}
}

func (h *RequestHandler) submit(w http.ResponseWriter, r *http.Request, kind domain.RequestKind, userID string, amount decimal.Decimal, payload domain.SubmissionPayload) {
	id, replayed, err := h.requests.SubmitIdempotent(r.Context(), r.Header.Get(IdempotencyHeader), kind, userID, amount, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, id, replayed)
}

func (h *RequestHandler) CreateMoneyRequest(w http.ResponseWriter, r *http.Request) {
	var body moneyRequestBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	h.submit(w, r, domain.KindMoney, body.UserID, amount, domain.MoneyRequestPayload{
		RequestType:    domain.RequestType(body.RequestType),
		Reason:         body.Reason,
		PaymentChannel: domain.PaymentChannel(body.PaymentChannel),
		PhoneNumber:    body.PhoneNumber,
	})
}

func (h *RequestHandler) GetMoneyRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.requests.GetMoneyRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) ApproveMoneyRequest(w http.ResponseWriter, r *http.Request) {
	id, body, err := h.decision(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.approvals.ApproveMoneyRequest(r.Context(), id, body.Actor, domain.Role(body.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) RejectMoneyRequest(w http.ResponseWriter, r *http.Request) {
	id, body, err := h.rejection(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.approvals.RejectMoneyRequest(r.Context(), id, body.Actor, domain.Role(body.Role), domain.RejectionReason(body.Reason), body.Comments)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body withdrawalBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	h.submit(w, r, domain.KindWithdrawal, body.UserID, amount, domain.WithdrawalPayload{
		Channel:     domain.WithdrawalChannel(body.Channel),
		PhoneNumber: body.PhoneNumber,
	})
}

// ListWithdrawals returns an account's withdrawals, oldest first.
func (h *RequestHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.requests.ListWithdrawals(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawals)
}

func (h *RequestHandler) ListMoneyRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListMoneyRequests(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, requests)
}

func (h *RequestHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := h.requests.GetWithdrawal(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawal)
}

func (h *RequestHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, body, err := h.decision(r)
	if err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := h.approvals.ApproveWithdrawal(r.Context(), id, body.Actor, domain.Role(body.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawal)
}

func (h *RequestHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, body, err := h.rejection(r)
	if err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := h.approvals.RejectWithdrawal(r.Context(), id, body.Actor, domain.Role(body.Role), domain.RejectionReason(body.Reason), body.Comments)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawal)
}

func (h *RequestHandler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body actorBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := h.approvals.MarkProcessing(r.Context(), id, body.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawal)
}

func (h *RequestHandler) CompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body completionBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := h.approvals.CompleteWithdrawal(r.Context(), id, body.Actor, body.TransactionReference)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawal)
}

func (h *RequestHandler) FailWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body failureBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := h.approvals.FailWithdrawal(r.Context(), id, body.Actor, body.FailureReason)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, withdrawal)
}

func (h *RequestHandler) CreateApprovalRequest(w http.ResponseWriter, r *http.Request) {
	var body approvalRequestBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	h.submit(w, r, domain.KindApproval, body.RequestedBy, amount, domain.ApprovalPayload{
		Title:       body.Title,
		Description: body.Description,
		Department:  body.Department,
		Priority:    body.Priority,
		Type:        body.Type,
		Details:     body.Details,
	})
}

func (h *RequestHandler) GetApprovalRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.requests.GetApprovalRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) ApproveApprovalRequest(w http.ResponseWriter, r *http.Request) {
	id, body, err := h.decision(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.approvals.ApproveApprovalRequest(r.Context(), id, body.Actor, domain.Role(body.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) RejectApprovalRequest(w http.ResponseWriter, r *http.Request) {
	id, body, err := h.rejection(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.approvals.RejectApprovalRequest(r.Context(), id, body.Actor, domain.Role(body.Role), domain.RejectionReason(body.Reason), body.Comments)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) RequestModification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body modificationRequestBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	request, err := h.approvals.RequestModification(r.Context(), id, body.Actor, domain.Role(body.Role), body.Comments)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) ModifyApprovalRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body modifyBody
	if err := decode(r, h.validator, &body); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseOptionalAmount(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := h.approvals.Modify(r.Context(), id, body.Actor, amount, body.Description, body.Comments)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, request)
}

func (h *RequestHandler) decision(r *http.Request) (id uuid.UUID, body decisionBody, err error) {
	if id, err = pathID(r); err != nil {
		return id, body, err
	}
	err = decode(r, h.validator, &body)
	return id, body, err
}

func (h *RequestHandler) rejection(r *http.Request) (id uuid.UUID, body rejectionBody, err error) {
	if id, err = pathID(r); err != nil {
		return id, body, err
	}
	if err = decode(r, h.validator, &body); err != nil {
		return id, body, err
	}
	if _, perr := domain.ParseRejectionReason(body.Reason); perr != nil {
		err = customError.WrapValidation("%v", perr)
	}
	return id, body, err
}
