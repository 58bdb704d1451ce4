package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
)

// ApproveWithdrawal authorizes a pending withdrawal. One approver from either
// role is enough. CASH is paid out on the spot and settles immediately;
// ZENGAPAY waits for the payment provider.
func (s *ApprovalService) ApproveWithdrawal(ctx context.Context, id uuid.UUID, actor string, role domain.Role) (*domain.WithdrawalRequest, error) {
	if err := checkActor(id, actor, role); err != nil {
		return nil, s.fail("approve", err)
	}

	action := domain.ActionApproved
	updated, err := s.onWithdrawal(ctx, id, func(repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error {
		if w.Status != domain.WithdrawalPending {
			return customError.WrapInvalidTransition(id.String(), "withdrawal is already "+w.Status)
		}

		w.ApprovedBy = &actor
		w.ApprovedAt = &now
		w.Status = domain.WithdrawalApproved
		w.UpdatedAt = now
		to := domain.DepartmentFinance

		if w.Channel == domain.WithdrawalCash {
			if err := settle(ctx, repos, w, now); err != nil {
				return err
			}
			to = domain.DepartmentCompleted
		}

		if err := repos.Withdrawals().Update(ctx, w); err != nil {
			return err
		}
		return repos.Workflow().Append(ctx, newStep(id.String(), action, role.Department(), to, actor, now))
	})
	if err != nil {
		return nil, s.fail("approve", err)
	}

	s.committed(domain.KindWithdrawal, action, id, actor, role, updated.Status)
	return updated, nil
}

// RejectWithdrawal refuses a withdrawal that has not been approved yet and
// releases its reservation.
func (s *ApprovalService) RejectWithdrawal(ctx context.Context, id uuid.UUID, actor string, role domain.Role, reason domain.RejectionReason, comments string) (*domain.WithdrawalRequest, error) {
	if err := checkRejection(id, actor, role, reason); err != nil {
		return nil, s.fail("reject", err)
	}

	updated, err := s.onWithdrawal(ctx, id, func(repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error {
		if w.Status != domain.WithdrawalPending {
			return customError.WrapInvalidTransition(id.String(), "withdrawal is already "+w.Status)
		}

		w.Status = domain.WithdrawalRejected
		w.RejectionReason = optional(string(reason))
		w.UpdatedAt = now
		if err := repos.Withdrawals().Update(ctx, w); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionRejected, role.Department(), domain.DepartmentRequester, actor, now)
		step.Reason = optional(string(reason))
		step.Comments = optional(comments)
		return repos.Workflow().Append(ctx, step)
	})
	if err != nil {
		return nil, s.fail("reject", err)
	}

	s.committed(domain.KindWithdrawal, domain.ActionRejected, id, actor, role, updated.Status)
	return updated, nil
}

// MarkProcessing records that the payment provider accepted the payout.
func (s *ApprovalService) MarkProcessing(ctx context.Context, id uuid.UUID, actor string) (*domain.WithdrawalRequest, error) {
	if actor == "" {
		return nil, s.fail("process", customError.WrapValidation("actor is required"))
	}

	updated, err := s.onWithdrawal(ctx, id, func(repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error {
		if w.Status != domain.WithdrawalApproved {
			return customError.WrapInvalidTransition(id.String(), "only approved withdrawals can start processing, got "+w.Status)
		}

		w.Status = domain.WithdrawalProcessing
		w.UpdatedAt = now
		if err := repos.Withdrawals().Update(ctx, w); err != nil {
			return err
		}
		return repos.Workflow().Append(ctx, newStep(id.String(), domain.ActionProcessing,
			domain.DepartmentFinance, domain.DepartmentFinance, actor, now))
	})
	if err != nil {
		return nil, s.fail("process", err)
	}

	s.committed(domain.KindWithdrawal, domain.ActionProcessing, id, actor, "", updated.Status)
	return updated, nil
}

// CompleteWithdrawal settles an approved or processing withdrawal: the debit
// is written and the reservation released in the same transaction.
func (s *ApprovalService) CompleteWithdrawal(ctx context.Context, id uuid.UUID, actor, transactionReference string) (*domain.WithdrawalRequest, error) {
	transactionReference = strings.TrimSpace(transactionReference)
	if actor == "" || transactionReference == "" {
		return nil, s.fail("complete", customError.WrapValidation("actor and transaction_reference are required"))
	}

	updated, err := s.onWithdrawal(ctx, id, func(repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error {
		if !w.Settleable() {
			return customError.WrapInvalidTransition(id.String(), "withdrawal cannot be completed from "+w.Status)
		}

		w.TransactionReference = &transactionReference
		if err := settle(ctx, repos, w, now); err != nil {
			return err
		}
		if err := repos.Withdrawals().Update(ctx, w); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionCompleted, domain.DepartmentFinance, domain.DepartmentCompleted, actor, now)
		step.Reason = &transactionReference
		return repos.Workflow().Append(ctx, step)
	})
	if err != nil {
		return nil, s.fail("complete", err)
	}

	s.committed(domain.KindWithdrawal, domain.ActionCompleted, id, actor, "", updated.Status)
	return updated, nil
}

// FailWithdrawal records a payout failure. No ledger entry is written and the
// reserved amount becomes available again.
func (s *ApprovalService) FailWithdrawal(ctx context.Context, id uuid.UUID, actor, failureReason string) (*domain.WithdrawalRequest, error) {
	failureReason = strings.TrimSpace(failureReason)
	if actor == "" || failureReason == "" {
		return nil, s.fail("fail", customError.WrapValidation("actor and failure_reason are required"))
	}

	updated, err := s.onWithdrawal(ctx, id, func(repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error {
		if !w.Settleable() {
			return customError.WrapInvalidTransition(id.String(), "withdrawal cannot fail from "+w.Status)
		}

		w.Status = domain.WithdrawalFailed
		w.FailureReason = &failureReason
		w.ProcessedAt = &now
		w.UpdatedAt = now
		if err := repos.Withdrawals().Update(ctx, w); err != nil {
			return err
		}

		step := newStep(id.String(), domain.ActionFailed, domain.DepartmentFinance, domain.DepartmentRequester, actor, now)
		step.Reason = &failureReason
		return repos.Workflow().Append(ctx, step)
	})
	if err != nil {
		return nil, s.fail("fail", err)
	}

	s.committed(domain.KindWithdrawal, domain.ActionFailed, id, actor, "", updated.Status)
	return updated, nil
}

// settle debits the wallet and marks the withdrawal completed. A reused
// ledger reference means the withdrawal was already paid out.
func settle(ctx context.Context, repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error {
	debit := domain.NewDebit(w.UserID, w.Amount, w.LedgerReference(), now)
	if err := repos.Ledger().Append(ctx, debit); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return customError.WrapInvalidTransition(w.ID.String(), "withdrawal already settled")
		}
		return err
	}

	w.Status = domain.WithdrawalCompleted
	w.ProcessedAt = &now
	w.UpdatedAt = now
	return nil
}

// onWithdrawal locks the owning account and hands fn a fresh copy of the
// withdrawal with the store's current time.
func (s *ApprovalService) onWithdrawal(ctx context.Context, id uuid.UUID, fn func(repos repository.Repositories, w *domain.WithdrawalRequest, now time.Time) error) (*domain.WithdrawalRequest, error) {
	current, err := s.store.Withdrawals().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("withdrawal", id, err)
	}

	var updated *domain.WithdrawalRequest
	err = s.atomically(ctx, repository.AccountLockKey(current.UserID), func(repos repository.Repositories) error {
		w, err := repos.Withdrawals().GetByID(ctx, id)
		if err != nil {
			return lookupError("withdrawal", id, err)
		}
		now, err := s.now(ctx)
		if err != nil {
			return err
		}
		if err := fn(repos, w, now); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
