package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/segyhp/ledger-engine/internal/cache"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/metrics"
	"github.com/segyhp/ledger-engine/pkg/utils"
	"github.com/segyhp/ledger-engine/pkg/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestService accepts new money, withdrawal and approval requests.
type RequestService struct {
	runner
	eligibility *EligibilityService
	idempotency cache.IdempotencyStore
	config      *config.Config

	idempotencyWait time.Duration
	idempotencyPoll time.Duration
}

func NewRequestService(
	store repository.Store,
	eligibility *EligibilityService,
	idempotency cache.IdempotencyStore,
	cfg *config.Config,
	log *zap.Logger,
	m *metrics.Collector,
) *RequestService {
	return &RequestService{
		runner:      newRunner(store, cfg.Business.MaxConflictRetries, log, m),
		eligibility: eligibility,
		idempotency: idempotency,
		config:      cfg,

		idempotencyWait: cache.DefaultPendingTTL,
		idempotencyPoll: 20 * time.Millisecond,
	}
}

// Submit validates and records a new request of the given kind and returns
// its id. Validation against balance or allowance and the insert happen
// under the account lock.
func (s *RequestService) Submit(ctx context.Context, kind domain.RequestKind, userID string, amount decimal.Decimal, payload domain.SubmissionPayload) (string, error) {
	if payload == nil || payload.Kind() != kind {
		return "", s.fail("submit", customError.WrapValidation("payload does not match request kind %q", kind))
	}
	if strings.TrimSpace(userID) == "" {
		return "", s.fail("submit", customError.WrapValidation("user_id is required"))
	}

	var (
		id  string
		err error
	)
	switch p := payload.(type) {
	case domain.MoneyRequestPayload:
		id, err = s.submitMoney(ctx, userID, amount, p)
	case domain.WithdrawalPayload:
		id, err = s.submitWithdrawal(ctx, userID, amount, p)
	case domain.ApprovalPayload:
		id, err = s.submitApproval(ctx, userID, amount, p)
	default:
		err = customError.WrapValidation("unsupported request kind %q", kind)
	}
	if err != nil {
		s.logger.Info("submission refused",
			zap.String("kind", string(kind)),
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.String("code", customError.Kind(err)),
			zap.Error(err),
		)
		return "", s.fail("submit", err)
	}

	s.logger.Info("request submitted",
		zap.String("request_id", id),
		zap.String("kind", string(kind)),
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
	)
	return id, nil
}

// SubmitIdempotent behaves like Submit but returns the id recorded for key
// when the same client key was already used. replayed reports that case.
// Callers racing on one key wait for the first submission to finish.
// The cache is advisory: its failures are logged and the submission proceeds.
func (s *RequestService) SubmitIdempotent(ctx context.Context, key string, kind domain.RequestKind, userID string, amount decimal.Decimal, payload domain.SubmissionPayload) (id string, replayed bool, err error) {
	if key == "" || s.idempotency == nil {
		id, err = s.Submit(ctx, kind, userID, amount, payload)
		return id, false, err
	}

	scoped := userID + ":" + key
	reserved, existing, err := s.reserve(ctx, scoped)
	if err != nil {
		return "", false, err
	}
	if existing != "" {
		return existing, true, nil
	}

	id, err = s.Submit(ctx, kind, userID, amount, payload)
	if err != nil {
		if reserved {
			if rerr := s.idempotency.Release(ctx, scoped); rerr != nil {
				s.logger.Warn("idempotency release failed", zap.String("key", scoped), zap.Error(rerr))
			}
		}
		return "", false, err
	}

	if reserved {
		if err := s.idempotency.Complete(ctx, scoped, id); err != nil {
			s.logger.Warn("idempotency store failed", zap.String("key", scoped), zap.Error(err))
		}
	}
	return id, false, nil
}

// reserve claims key or waits until its holder records a request id.
// reserved is false when the cache failed and the caller proceeds unguarded.
func (s *RequestService) reserve(ctx context.Context, key string) (reserved bool, existing string, err error) {
	deadline := time.Now().Add(s.idempotencyWait)
	for {
		acquired, id, err := s.idempotency.Reserve(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("idempotency reserve failed", zap.String("key", key), zap.Error(err))
			return false, "", nil
		case acquired:
			return true, "", nil
		case id != "":
			return false, id, nil
		}

		if time.Now().After(deadline) {
			return false, "", s.fail("submit", customError.WrapConcurrencyConflict("idempotency key "+key, nil))
		}
		select {
		case <-ctx.Done():
			return false, "", ctx.Err()
		case <-time.After(s.idempotencyPoll):
		}
	}
}

func (s *RequestService) validateAmount(amount, floor decimal.Decimal) error {
	step := s.config.GetAmountStep()
	if !utils.IsPositiveMultiple(amount, step) {
		return customError.WrapValidation("amount %s must be a positive multiple of %s", amount, step)
	}
	if amount.LessThan(floor) {
		return customError.WrapValidation("amount %s is below the minimum of %s", amount, floor)
	}
	return nil
}

func validatePhone(phone string, required bool) error {
	if phone == "" {
		if required {
			return customError.WrapValidation("phone_number is required for mobile money payments")
		}
		return nil
	}
	if !validation.IsMSISDN(phone) {
		return customError.WrapValidation("phone_number %q is not a valid mobile number", phone)
	}
	return nil
}

func (s *RequestService) submitMoney(ctx context.Context, userID string, amount decimal.Decimal, p domain.MoneyRequestPayload) (string, error) {
	requestType, err := domain.ParseRequestType(string(p.RequestType))
	if err != nil {
		return "", customError.WrapValidation("%v", err)
	}

	floor := s.config.GetMinimumAmount()
	if requestType.IsSalary() {
		floor = s.config.GetSalaryMinimumAmount()
	}
	if err := s.validateAmount(amount, floor); err != nil {
		return "", err
	}

	switch p.PaymentChannel {
	case domain.ChannelCash, domain.ChannelMobileMoney:
	default:
		return "", customError.WrapValidation("payment_channel must be CASH or MOBILE_MONEY")
	}
	if err := validatePhone(p.PhoneNumber, p.PaymentChannel == domain.ChannelMobileMoney); err != nil {
		return "", err
	}

	now, err := s.now(ctx)
	if err != nil {
		return "", err
	}

	request := &domain.MoneyRequest{
		ID:             uuid.New(),
		UserID:         userID,
		Amount:         amount,
		Reason:         strings.TrimSpace(p.Reason),
		RequestType:    requestType,
		ApprovalStage:  requestType.InitialStage(),
		Status:         domain.MoneyStatusPending,
		PaymentChannel: p.PaymentChannel,
		PhoneNumber:    optional(p.PhoneNumber),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.atomically(ctx, repository.AccountLockKey(userID), func(repos repository.Repositories) error {
		employee, err := getEmployee(ctx, repos, userID)
		if err != nil {
			return err
		}

		e, err := s.eligibility.evaluate(ctx, repos, employee, requestType, now)
		if err != nil {
			return err
		}
		if amount.GreaterThan(e.Available) {
			return customError.WrapInsufficientAllowance(e.Available.String(), amount.String(), e.Message)
		}
		request.PeriodMonth = e.PeriodMonth

		if err := repos.MoneyRequests().Create(ctx, request); err != nil {
			return err
		}

		step := newStep(request.ID.String(), domain.ActionSubmitted,
			domain.DepartmentRequester, domain.DepartmentFor(request.ApprovalStage), userID, now)
		step.Reason = optional(request.Reason)
		return repos.Workflow().Append(ctx, step)
	})
	if err != nil {
		return "", err
	}

	s.metrics.Submitted(string(domain.KindMoney), string(requestType))
	return request.ID.String(), nil
}

func (s *RequestService) submitWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, p domain.WithdrawalPayload) (string, error) {
	if err := s.validateAmount(amount, s.config.GetMinimumAmount()); err != nil {
		return "", err
	}

	switch p.Channel {
	case domain.WithdrawalZengaPay, domain.WithdrawalCash:
	default:
		return "", customError.WrapValidation("channel must be ZENGAPAY or CASH")
	}
	if err := validatePhone(p.PhoneNumber, p.Channel == domain.WithdrawalZengaPay); err != nil {
		return "", err
	}

	now, err := s.now(ctx)
	if err != nil {
		return "", err
	}

	request := &domain.WithdrawalRequest{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		PhoneNumber: optional(p.PhoneNumber),
		Channel:     p.Channel,
		Status:      domain.WithdrawalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.atomically(ctx, repository.AccountLockKey(userID), func(repos repository.Repositories) error {
		if _, err := getEmployee(ctx, repos, userID); err != nil {
			return err
		}

		snapshot, err := accountSnapshot(ctx, repos, userID)
		if err != nil {
			return err
		}
		if ceiling := snapshot.AuthorizationCeiling(); amount.GreaterThan(ceiling) {
			return customError.WrapInsufficientBalance(ceiling.String(), amount.String())
		}

		if err := repos.Withdrawals().Create(ctx, request); err != nil {
			return err
		}

		step := newStep(request.ID.String(), domain.ActionSubmitted,
			domain.DepartmentRequester, domain.DepartmentAdmin, userID, now)
		return repos.Workflow().Append(ctx, step)
	})
	if err != nil {
		return "", err
	}

	s.metrics.Submitted(string(domain.KindWithdrawal), string(p.Channel))
	return request.ID.String(), nil
}

func (s *RequestService) submitApproval(ctx context.Context, userID string, amount decimal.Decimal, p domain.ApprovalPayload) (string, error) {
	if strings.TrimSpace(p.Title) == "" {
		return "", customError.WrapValidation("title is required")
	}
	if !amount.IsPositive() {
		return "", customError.WrapValidation("amount %s must be positive", amount)
	}

	details := types.JSONText("{}")
	if len(p.Details) > 0 {
		if !json.Valid(p.Details) {
			return "", customError.WrapValidation("details must be valid JSON")
		}
		details = types.JSONText(p.Details)
	}

	now, err := s.now(ctx)
	if err != nil {
		return "", err
	}

	request := &domain.ApprovalRequest{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(p.Title),
		Description:   p.Description,
		Amount:        amount,
		Department:    p.Department,
		RequestedBy:   userID,
		Priority:      p.Priority,
		Type:          p.Type,
		Status:        domain.ApprovalStatusPending,
		Details:       details,
		DateRequested: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	request.ApprovalStage = request.InitialStage()

	err = s.atomically(ctx, repository.ApprovalLockKey(request.ID), func(repos repository.Repositories) error {
		if err := repos.Approvals().Create(ctx, request); err != nil {
			return err
		}
		step := newStep(request.ID.String(), domain.ActionSubmitted,
			domain.DepartmentRequester, domain.DepartmentFor(request.ApprovalStage), userID, now)
		return repos.Workflow().Append(ctx, step)
	})
	if err != nil {
		return "", err
	}

	s.metrics.Submitted(string(domain.KindApproval), request.Type)
	return request.ID.String(), nil
}

func (s *RequestService) GetMoneyRequest(ctx context.Context, id uuid.UUID) (*domain.MoneyRequest, error) {
	r, err := s.store.MoneyRequests().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("money request", id, err)
	}
	return r, nil
}

func (s *RequestService) GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.store.Withdrawals().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("withdrawal", id, err)
	}
	return w, nil
}

func (s *RequestService) GetApprovalRequest(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	a, err := s.store.Approvals().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("approval request", id, err)
	}
	return a, nil
}

// ListMoneyRequests returns every money request userID submitted, oldest first.
func (s *RequestService) ListMoneyRequests(ctx context.Context, userID string) ([]*domain.MoneyRequest, error) {
	if _, err := getEmployee(ctx, s.store, userID); err != nil {
		return nil, mapStoreError(err, "")
	}
	requests, err := s.store.MoneyRequests().ListByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	if requests == nil {
		requests = []*domain.MoneyRequest{}
	}
	return requests, nil
}

func (s *RequestService) ListWithdrawals(ctx context.Context, userID string) ([]*domain.WithdrawalRequest, error) {
	if _, err := getEmployee(ctx, s.store, userID); err != nil {
		return nil, mapStoreError(err, "")
	}
	withdrawals, err := s.store.Withdrawals().ListByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	if withdrawals == nil {
		withdrawals = []*domain.WithdrawalRequest{}
	}
	return withdrawals, nil
}
