package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApprovalService drives requests from submission to a terminal state.
// Money and approval requests need both Admin and Finance; withdrawals
// need one approver followed by settlement.
type ApprovalService struct {
	runner
	config *config.Config
}

func NewApprovalService(store repository.Store, cfg *config.Config, log *zap.Logger, m *metrics.Collector) *ApprovalService {
	return &ApprovalService{
		runner: newRunner(store, cfg.Business.MaxConflictRetries, log, m),
		config: cfg,
	}
}

// Approve casts role's approval on the request of the given kind.
func (s *ApprovalService) Approve(ctx context.Context, kind domain.RequestKind, id uuid.UUID, actor string, role domain.Role) error {
	var err error
	switch kind {
	case domain.KindMoney:
		_, err = s.ApproveMoneyRequest(ctx, id, actor, role)
	case domain.KindWithdrawal:
		_, err = s.ApproveWithdrawal(ctx, id, actor, role)
	case domain.KindApproval:
		_, err = s.ApproveApprovalRequest(ctx, id, actor, role)
	default:
		err = customError.WrapValidation("unknown request kind %q", kind)
	}
	return err
}

// Reject vetoes the request of the given kind.
func (s *ApprovalService) Reject(ctx context.Context, kind domain.RequestKind, id uuid.UUID, actor string, role domain.Role, reason domain.RejectionReason, comments string) error {
	var err error
	switch kind {
	case domain.KindMoney:
		_, err = s.RejectMoneyRequest(ctx, id, actor, role, reason, comments)
	case domain.KindWithdrawal:
		_, err = s.RejectWithdrawal(ctx, id, actor, role, reason, comments)
	case domain.KindApproval:
		_, err = s.RejectApprovalRequest(ctx, id, actor, role, reason, comments)
	default:
		err = customError.WrapValidation("unknown request kind %q", kind)
	}
	return err
}

func (s *ApprovalService) ApproveMoneyRequest(ctx context.Context, id uuid.UUID, actor string, role domain.Role) (*domain.MoneyRequest, error) {
	if err := checkActor(id, actor, role); err != nil {
		return nil, s.fail("approve", err)
	}

	var updated *domain.MoneyRequest
	err := s.onMoneyRequest(ctx, id, func(repos repository.Repositories, request *domain.MoneyRequest) error {
		if request.IsTerminal() {
			return customError.WrapInvalidTransition(id.String(), "request is already "+request.Status)
		}

		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		c := request.Consensus()
		stage, err := c.Approve(role, actor, now)
		if err != nil {
			return transitionError(id, err)
		}
		request.Apply(c, now)

		if err := repos.MoneyRequests().Update(ctx, request); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionApproved, role.Department(), domain.DepartmentFor(stage), actor, now)
		if err := repos.Workflow().Append(ctx, step); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("approve", err)
	}

	s.committed(domain.KindMoney, domain.ActionApproved, id, actor, role, string(updated.ApprovalStage))
	return updated, nil
}

func (s *ApprovalService) RejectMoneyRequest(ctx context.Context, id uuid.UUID, actor string, role domain.Role, reason domain.RejectionReason, comments string) (*domain.MoneyRequest, error) {
	if err := checkRejection(id, actor, role, reason); err != nil {
		return nil, s.fail("reject", err)
	}

	var updated *domain.MoneyRequest
	err := s.onMoneyRequest(ctx, id, func(repos repository.Repositories, request *domain.MoneyRequest) error {
		if request.IsTerminal() {
			return customError.WrapInvalidTransition(id.String(), "request is already "+request.Status)
		}

		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		c := request.Consensus()
		if err := c.Reject(role, actor, now, reason, comments); err != nil {
			return transitionError(id, err)
		}
		request.Apply(c, now)

		if err := repos.MoneyRequests().Update(ctx, request); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionRejected, role.Department(), domain.DepartmentRequester, actor, now)
		step.Reason = optional(string(reason))
		step.Comments = optional(comments)
		if err := repos.Workflow().Append(ctx, step); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("reject", err)
	}

	s.committed(domain.KindMoney, domain.ActionRejected, id, actor, role, string(updated.ApprovalStage))
	return updated, nil
}

// onMoneyRequest locks the owning account and hands fn a fresh copy of the request.
func (s *ApprovalService) onMoneyRequest(ctx context.Context, id uuid.UUID, fn func(repos repository.Repositories, request *domain.MoneyRequest) error) error {
	current, err := s.store.MoneyRequests().GetByID(ctx, id)
	if err != nil {
		return lookupError("money request", id, err)
	}

	return s.atomically(ctx, repository.AccountLockKey(current.UserID), func(repos repository.Repositories) error {
		request, err := repos.MoneyRequests().GetByID(ctx, id)
		if err != nil {
			return lookupError("money request", id, err)
		}
		return fn(repos, request)
	})
}

func (s *ApprovalService) ApproveApprovalRequest(ctx context.Context, id uuid.UUID, actor string, role domain.Role) (*domain.ApprovalRequest, error) {
	if err := checkActor(id, actor, role); err != nil {
		return nil, s.fail("approve", err)
	}

	var updated *domain.ApprovalRequest
	err := s.onApprovalRequest(ctx, id, func(repos repository.Repositories, request *domain.ApprovalRequest) error {
		if request.IsTerminal() {
			return customError.WrapInvalidTransition(id.String(), "request is already "+request.Status)
		}
		if request.ApprovalStage == domain.StageModificationRequested {
			return transitionError(id, domain.ErrAwaitingChange)
		}

		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		c := request.Consensus()
		stage, err := c.Approve(role, actor, now)
		if err != nil {
			return transitionError(id, err)
		}
		request.Apply(c, now)

		if err := repos.Approvals().Update(ctx, request); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionApproved, role.Department(), domain.DepartmentFor(stage), actor, now)
		if err := repos.Workflow().Append(ctx, step); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("approve", err)
	}

	s.committed(domain.KindApproval, domain.ActionApproved, id, actor, role, string(updated.ApprovalStage))
	return updated, nil
}

func (s *ApprovalService) RejectApprovalRequest(ctx context.Context, id uuid.UUID, actor string, role domain.Role, reason domain.RejectionReason, comments string) (*domain.ApprovalRequest, error) {
	if err := checkRejection(id, actor, role, reason); err != nil {
		return nil, s.fail("reject", err)
	}

	var updated *domain.ApprovalRequest
	err := s.onApprovalRequest(ctx, id, func(repos repository.Repositories, request *domain.ApprovalRequest) error {
		if request.IsTerminal() {
			return customError.WrapInvalidTransition(id.String(), "request is already "+request.Status)
		}

		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		c := request.Consensus()
		if err := c.Reject(role, actor, now, reason, comments); err != nil {
			return transitionError(id, err)
		}
		request.Apply(c, now)

		if err := repos.Approvals().Update(ctx, request); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionRejected, role.Department(), domain.DepartmentRequester, actor, now)
		step.Reason = optional(string(reason))
		step.Comments = optional(comments)
		if err := repos.Workflow().Append(ctx, step); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("reject", err)
	}

	s.committed(domain.KindApproval, domain.ActionRejected, id, actor, role, string(updated.ApprovalStage))
	return updated, nil
}

// RequestModification sends an approval request back to its requester and
// clears both votes.
func (s *ApprovalService) RequestModification(ctx context.Context, id uuid.UUID, actor string, role domain.Role, comments string) (*domain.ApprovalRequest, error) {
	if err := checkActor(id, actor, role); err != nil {
		return nil, s.fail("request_modification", err)
	}

	var updated *domain.ApprovalRequest
	err := s.onApprovalRequest(ctx, id, func(repos repository.Repositories, request *domain.ApprovalRequest) error {
		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		if err := request.RequestChanges(now); err != nil {
			return transitionError(id, err)
		}
		if err := repos.Approvals().Update(ctx, request); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionModificationRequested, role.Department(), domain.DepartmentRequester, actor, now)
		step.Comments = optional(comments)
		if err := repos.Workflow().Append(ctx, step); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("request_modification", err)
	}

	s.committed(domain.KindApproval, domain.ActionModificationRequested, id, actor, role, string(updated.ApprovalStage))
	return updated, nil
}

// Modify applies the requester's changes and restarts the approval round.
func (s *ApprovalService) Modify(ctx context.Context, id uuid.UUID, actor string, amount *decimal.Decimal, description *string, comments string) (*domain.ApprovalRequest, error) {
	if actor == "" {
		return nil, s.fail("modify", customError.WrapValidation("actor is required"))
	}
	if amount != nil && !amount.IsPositive() {
		return nil, s.fail("modify", customError.WrapValidation("amount %s must be positive", amount))
	}

	var updated *domain.ApprovalRequest
	err := s.onApprovalRequest(ctx, id, func(repos repository.Repositories, request *domain.ApprovalRequest) error {
		if request.RequestedBy != actor {
			return customError.WrapInvalidTransition(id.String(), "only the requester may modify the request")
		}

		now, err := s.now(ctx)
		if err != nil {
			return err
		}

		if err := request.Resubmit(amount, description, now); err != nil {
			return transitionError(id, err)
		}
		if err := repos.Approvals().Update(ctx, request); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionModified, domain.DepartmentRequester, domain.DepartmentFor(request.ApprovalStage), actor, now)
		step.Comments = optional(comments)
		if err := repos.Workflow().Append(ctx, step); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("modify", err)
	}

	s.committed(domain.KindApproval, domain.ActionModified, id, actor, "", string(updated.ApprovalStage))
	return updated, nil
}

func (s *ApprovalService) onApprovalRequest(ctx context.Context, id uuid.UUID, fn func(repos repository.Repositories, request *domain.ApprovalRequest) error) error {
	return s.atomically(ctx, repository.ApprovalLockKey(id), func(repos repository.Repositories) error {
		request, err := repos.Approvals().GetByID(ctx, id)
		if err != nil {
			return lookupError("approval request", id, err)
		}
		return fn(repos, request)
	})
}

func (s *ApprovalService) committed(kind domain.RequestKind, action domain.WorkflowAction, id uuid.UUID, actor string, role domain.Role, state string) {
	s.metrics.Transition(string(kind), string(action))
	s.logger.Info("request transition committed",
		zap.String("request_id", id.String()),
		zap.String("kind", string(kind)),
		zap.String("action", string(action)),
		zap.String("actor", actor),
		zap.String("role", string(role)),
		zap.String("state", state),
	)
}

func checkActor(id uuid.UUID, actor string, role domain.Role) error {
	if actor == "" {
		return customError.WrapValidation("actor is required")
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return customError.WrapInvalidTransition(id.String(), err.Error())
	}
	return nil
}

func checkRejection(id uuid.UUID, actor string, role domain.Role, reason domain.RejectionReason) error {
	if err := checkActor(id, actor, role); err != nil {
		return err
	}
	if _, err := domain.ParseRejectionReason(string(reason)); err != nil {
		return customError.WrapValidation("%v", err)
	}
	return nil
}

// transitionError maps state machine refusals onto InvalidTransition.
func transitionError(id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownReason):
		return customError.WrapValidation("%v", err)
	case errors.Is(err, domain.ErrUnknownRole),
		errors.Is(err, domain.ErrAlreadyTerminal),
		errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrAwaitingChange),
		errors.Is(err, domain.ErrNotAwaitingChange):
		return customError.WrapInvalidTransition(id.String(), err.Error())
	}
	return err
}

func lookupError(entity string, id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return customError.WrapNotFound(entity, id.String())
	}
	return mapStoreError(err, "")
}
