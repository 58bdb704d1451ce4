package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/domain"
	customError "github.com/segyhp/ledger-engine/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moneyFixture(t *testing.T, requestType domain.RequestType) (*fixture, uuid.UUID) {
	t.Helper()
	f := newFixture(t, day(2026, 10, 14))
	f.employee(t, "u1", 1000000)
	id, err := f.submitMoney("u1", requestType, 20000)
	require.NoError(t, err)
	return f, mustParse(t, id)
}

func TestDualApprovalInEitherOrder(t *testing.T) {
	tests := []struct {
		name      string
		first     domain.Role
		second    domain.Role
		wantAfter domain.Stage
	}{
		{"admin then finance", domain.RoleAdmin, domain.RoleFinance, domain.StagePendingFinance},
		{"finance then admin", domain.RoleFinance, domain.RoleAdmin, domain.StagePendingAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, id := moneyFixture(t, domain.TypeAdvance)
			ctx := context.Background()

			r, err := f.approvals.ApproveMoneyRequest(ctx, id, "first-approver", tt.first)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAfter, r.ApprovalStage)
			assert.Equal(t, domain.MoneyStatusPending, r.Status, "one vote is never enough")

			r, err = f.approvals.ApproveMoneyRequest(ctx, id, "second-approver", tt.second)
			require.NoError(t, err)
			assert.Equal(t, domain.StageApproved, r.ApprovalStage)
			assert.Equal(t, domain.MoneyStatusApproved, r.Status)
			assert.True(t, r.AdminApproved)
			assert.True(t, r.FinanceApproved)
			require.NotNil(t, r.AdminApprovedBy)
			require.NotNil(t, r.FinanceApprovedAt)

			steps, err := f.audit.GetHistory(ctx, id.String())
			require.NoError(t, err)
			assert.Equal(t, []domain.WorkflowAction{domain.ActionSubmitted, domain.ActionApproved, domain.ActionApproved}, actions(steps))
			assert.Equal(t, domain.DepartmentCompleted, steps[2].ToDepartment)

			wallet := f.snapshot(t, "u1").WalletBalance
			assert.True(t, wallet.IsZero(), "approved money requests are paid through a side channel")
		})
	}
}

func TestPayrollCategoryStartsWithFinance(t *testing.T) {
	f, id := moneyFixture(t, domain.TypeMidMonth)

	r, err := f.approvals.ApproveMoneyRequest(context.Background(), id, "fin", domain.RoleFinance)
	require.NoError(t, err)
	assert.Equal(t, domain.StagePendingAdmin, r.ApprovalStage)

	r, err = f.approvals.ApproveMoneyRequest(context.Background(), id, "adm", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyStatusApproved, r.Status)
}

func TestRejectionIsFinalAndIdempotent(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleFinance} {
		t.Run(string(role), func(t *testing.T) {
			f, id := moneyFixture(t, domain.TypeBonus)
			ctx := context.Background()

			r, err := f.approvals.RejectMoneyRequest(ctx, id, "boss", role, domain.ReasonInsufficientFunds, "budget is spent")
			require.NoError(t, err)
			assert.Equal(t, domain.MoneyStatusRejected, r.Status)
			assert.Equal(t, domain.StageRejected, r.ApprovalStage)
			require.NotNil(t, r.RejectionReason)
			assert.Equal(t, string(domain.ReasonInsufficientFunds), *r.RejectionReason)

			_, err = f.approvals.RejectMoneyRequest(ctx, id, "boss", role, domain.ReasonOther, "again")
			require.Error(t, err)
			assert.True(t, errors.Is(err, customError.ErrInvalidTransition))

			_, err = f.approvals.ApproveMoneyRequest(ctx, id, "other", role.Other())
			assert.True(t, errors.Is(err, customError.ErrInvalidTransition))

			after, err := f.requests.GetMoneyRequest(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, r, after)

			steps, err := f.audit.GetHistory(ctx, id.String())
			require.NoError(t, err)
			assert.Equal(t, []domain.WorkflowAction{domain.ActionSubmitted, domain.ActionRejected}, actions(steps))
			require.NotNil(t, steps[1].Comments)
			assert.Equal(t, "budget is spent", *steps[1].Comments)
		})
	}
}

func TestRejectAfterOtherRoleApproved(t *testing.T) {
	f, id := moneyFixture(t, domain.TypeAdvance)
	ctx := context.Background()

	_, err := f.approvals.ApproveMoneyRequest(ctx, id, "adm", domain.RoleAdmin)
	require.NoError(t, err)

	r, err := f.approvals.RejectMoneyRequest(ctx, id, "fin", domain.RoleFinance, domain.ReasonPriceTooHigh, "")
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyStatusRejected, r.Status)
	assert.True(t, r.AdminApproved, "the admin vote is kept for the record")
	assert.False(t, r.FinanceApproved)
}

func TestApprovalRefusals(t *testing.T) {
	tests := []struct {
		name     string
		act      func(f *fixture, id uuid.UUID) error
		wantCode string
	}{
		{
			name: "same role twice",
			act: func(f *fixture, id uuid.UUID) error {
				if _, err := f.approvals.ApproveMoneyRequest(context.Background(), id, "adm", domain.RoleAdmin); err != nil {
					return err
				}
				_, err := f.approvals.ApproveMoneyRequest(context.Background(), id, "adm2", domain.RoleAdmin)
				return err
			},
			wantCode: customError.ErrCodeInvalidTransition,
		},
		{
			name: "unknown role",
			act: func(f *fixture, id uuid.UUID) error {
				_, err := f.approvals.ApproveMoneyRequest(context.Background(), id, "ceo", domain.Role("ceo"))
				return err
			},
			wantCode: customError.ErrCodeInvalidTransition,
		},
		{
			name: "unknown rejection reason",
			act: func(f *fixture, id uuid.UUID) error {
				_, err := f.approvals.RejectMoneyRequest(context.Background(), id, "adm", domain.RoleAdmin, "because", "")
				return err
			},
			wantCode: customError.ErrCodeValidation,
		},
		{
			name: "re-approval of an approved request",
			act: func(f *fixture, id uuid.UUID) error {
				ctx := context.Background()
				if _, err := f.approvals.ApproveMoneyRequest(ctx, id, "adm", domain.RoleAdmin); err != nil {
					return err
				}
				if _, err := f.approvals.ApproveMoneyRequest(ctx, id, "fin", domain.RoleFinance); err != nil {
					return err
				}
				_, err := f.approvals.ApproveMoneyRequest(ctx, id, "fin", domain.RoleFinance)
				return err
			},
			wantCode: customError.ErrCodeInvalidTransition,
		},
		{
			name: "unknown request",
			act: func(f *fixture, _ uuid.UUID) error {
				_, err := f.approvals.ApproveMoneyRequest(context.Background(), uuid.New(), "adm", domain.RoleAdmin)
				return err
			},
			wantCode: customError.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, id := moneyFixture(t, domain.TypeAdvance)
			err := tt.act(f, id)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, customError.Kind(err))
		})
	}
}

func TestGenericDispatch(t *testing.T) {
	f, id := moneyFixture(t, domain.TypeAdvance)
	ctx := context.Background()

	require.NoError(t, f.approvals.Approve(ctx, domain.KindMoney, id, "adm", domain.RoleAdmin))
	require.NoError(t, f.approvals.Approve(ctx, domain.KindMoney, id, "fin", domain.RoleFinance))
	err := f.approvals.Reject(ctx, domain.KindMoney, id, "fin", domain.RoleFinance, domain.ReasonOther, "")
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "ledger_request_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series, "only the money/approved series was committed")
}

func approvalFixture(t *testing.T) (*fixture, uuid.UUID) {
	t.Helper()
	f := newFixture(t, day(2026, 10, 14))
	id, err := f.requests.Submit(context.Background(), domain.KindApproval, "buyer", amount(900000), domain.ApprovalPayload{
		Title:       "Washing station repairs",
		Description: "Replace pulper",
		Type:        "maintenance",
	})
	require.NoError(t, err)
	return f, mustParse(t, id)
}

func TestApprovalRequestModificationRoundTrip(t *testing.T) {
	f, id := approvalFixture(t)
	ctx := context.Background()

	_, err := f.approvals.ApproveApprovalRequest(ctx, id, "adm", domain.RoleAdmin)
	require.NoError(t, err)

	a, err := f.approvals.RequestModification(ctx, id, "fin", domain.RoleFinance, "quote is missing")
	require.NoError(t, err)
	assert.Equal(t, domain.StageModificationRequested, a.ApprovalStage)
	assert.Equal(t, domain.ApprovalStatusPending, a.Status)
	assert.False(t, a.AdminApproved, "votes are cleared")

	_, err = f.approvals.ApproveApprovalRequest(ctx, id, "adm", domain.RoleAdmin)
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))

	_, err = f.approvals.RequestModification(ctx, id, "fin", domain.RoleFinance, "again")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))

	newAmount := decimal.NewFromInt(750000)
	_, err = f.approvals.Modify(ctx, id, "someone-else", &newAmount, nil, "")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))

	description := "Replace pulper, quote attached"
	a, err = f.approvals.Modify(ctx, id, "buyer", &newAmount, &description, "quote attached")
	require.NoError(t, err)
	assert.Equal(t, domain.StagePendingAdmin, a.ApprovalStage)
	assert.True(t, a.Amount.Equal(newAmount))
	assert.Equal(t, description, a.Description)

	_, err = f.approvals.Modify(ctx, id, "buyer", &newAmount, nil, "")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err), "modify only while awaiting changes")

	_, err = f.approvals.ApproveApprovalRequest(ctx, id, "fin", domain.RoleFinance)
	require.NoError(t, err)
	a, err = f.approvals.ApproveApprovalRequest(ctx, id, "adm", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, a.Status)

	steps, err := f.audit.GetHistory(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []domain.WorkflowAction{
		domain.ActionSubmitted,
		domain.ActionApproved,
		domain.ActionModificationRequested,
		domain.ActionModified,
		domain.ActionApproved,
		domain.ActionApproved,
	}, actions(steps))
}

func TestApprovalRequestRejection(t *testing.T) {
	f, id := approvalFixture(t)
	ctx := context.Background()

	a, err := f.approvals.RejectApprovalRequest(ctx, id, "fin", domain.RoleFinance, domain.ReasonQualityIssues, "moisture too high")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, a.Status)

	_, err = f.approvals.RequestModification(ctx, id, "adm", domain.RoleAdmin, "")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))
}

func TestCashWithdrawalSettlesOnApproval(t *testing.T) {
	f := newFixture(t, day(2026, 10, 14))
	f.employee(t, "u1", 1000000)
	f.credit(t, "u1", 50000, "c1")
	ctx := context.Background()

	raw, err := f.submitWithdrawal("u1", domain.WithdrawalCash, 20000)
	require.NoError(t, err)
	id := mustParse(t, raw)

	w, err := f.approvals.ApproveWithdrawal(ctx, id, "cashier", domain.RoleFinance)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCompleted, w.Status)
	require.NotNil(t, w.ProcessedAt)

	s := f.snapshot(t, "u1")
	assert.True(t, s.WalletBalance.Equal(amount(30000)))
	assert.True(t, s.PendingWithdrawals.IsZero())
	assert.True(t, s.AvailableToRequest.Equal(amount(30000)))

	entries, err := f.store.Ledger().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryDebit, entries[1].EntryType)
	assert.Equal(t, w.LedgerReference(), entries[1].Reference)

	_, err = f.approvals.ApproveWithdrawal(ctx, id, "cashier", domain.RoleFinance)
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))
}

func TestMobileWithdrawalSettlement(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		f := newFixture(t, day(2026, 10, 14))
		f.employee(t, "u1", 1000000)
		f.credit(t, "u1", 50000, "c1")
		ctx := context.Background()

		raw, err := f.submitWithdrawal("u1", domain.WithdrawalZengaPay, 20000)
		require.NoError(t, err)
		id := mustParse(t, raw)

		_, err = f.approvals.CompleteWithdrawal(ctx, id, "ops", "ZP-1")
		assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err), "pending withdrawals cannot settle")

		w, err := f.approvals.ApproveWithdrawal(ctx, id, "adm", domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalApproved, w.Status)
		assert.True(t, f.snapshot(t, "u1").PendingWithdrawals.Equal(amount(20000)))

		w, err = f.approvals.MarkProcessing(ctx, id, "ops")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalProcessing, w.Status)

		_, err = f.approvals.RejectWithdrawal(ctx, id, "adm", domain.RoleAdmin, domain.ReasonOther, "")
		assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))

		w, err = f.approvals.CompleteWithdrawal(ctx, id, "ops", "ZP-1")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalCompleted, w.Status)
		require.NotNil(t, w.TransactionReference)
		assert.Equal(t, "ZP-1", *w.TransactionReference)

		s := f.snapshot(t, "u1")
		assert.True(t, s.WalletBalance.Equal(amount(30000)))
		assert.True(t, s.AvailableToRequest.Equal(amount(30000)))

		_, err = f.approvals.CompleteWithdrawal(ctx, id, "ops", "ZP-1")
		assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))

		steps, err := f.audit.GetHistory(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, []domain.WorkflowAction{
			domain.ActionSubmitted, domain.ActionApproved, domain.ActionProcessing, domain.ActionCompleted,
		}, actions(steps))
	})

	t.Run("fail releases the reservation", func(t *testing.T) {
		f := newFixture(t, day(2026, 10, 14))
		f.employee(t, "u1", 1000000)
		f.credit(t, "u1", 50000, "c1")
		ctx := context.Background()

		raw, err := f.submitWithdrawal("u1", domain.WithdrawalZengaPay, 20000)
		require.NoError(t, err)
		id := mustParse(t, raw)
		_, err = f.approvals.ApproveWithdrawal(ctx, id, "adm", domain.RoleAdmin)
		require.NoError(t, err)

		_, err = f.approvals.FailWithdrawal(ctx, id, "ops", "")
		assert.Equal(t, customError.ErrCodeValidation, customError.Kind(err))

		w, err := f.approvals.FailWithdrawal(ctx, id, "ops", "recipient wallet closed")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalFailed, w.Status)

		s := f.snapshot(t, "u1")
		assert.True(t, s.WalletBalance.Equal(amount(50000)))
		assert.True(t, s.AvailableToRequest.Equal(amount(50000)))
	})

	t.Run("reject pending", func(t *testing.T) {
		f := newFixture(t, day(2026, 10, 14))
		f.employee(t, "u1", 1000000)
		f.credit(t, "u1", 50000, "c1")
		ctx := context.Background()

		raw, err := f.submitWithdrawal("u1", domain.WithdrawalZengaPay, 50000)
		require.NoError(t, err)
		id := mustParse(t, raw)

		w, err := f.approvals.RejectWithdrawal(ctx, id, "fin", domain.RoleFinance, domain.ReasonDuplicateOrder, "")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalRejected, w.Status)
		assert.True(t, f.snapshot(t, "u1").AvailableToRequest.Equal(amount(50000)))

		_, err = f.approvals.RejectWithdrawal(ctx, id, "fin", domain.RoleFinance, domain.ReasonDuplicateOrder, "")
		assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Kind(err))
	})
}
