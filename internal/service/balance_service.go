package service

import (
	"context"

	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/segyhp/ledger-engine/pkg/logger"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"go.uber.org/zap"
)

// BalanceService derives account balances from the ledger on every read.
type BalanceService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewBalanceService(store repository.Store, log *zap.Logger) *BalanceService {
	return &BalanceService{store: store, logger: logger.OrNop(log)}
}

// GetAccountSnapshot returns wallet_balance, pending_withdrawals and
// available_to_request for userID. Accounts without ledger history are zero.
func (s *BalanceService) GetAccountSnapshot(ctx context.Context, userID string) (*domain.AccountSnapshot, error) {
	if _, err := getEmployee(ctx, s.store, userID); err != nil {
		return nil, mapStoreError(err, "")
	}

	snapshot, err := accountSnapshot(ctx, s.store, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	return snapshot, nil
}

// Ledger returns the account's entries in the order they were written.
func (s *BalanceService) Ledger(ctx context.Context, userID string) ([]*domain.LedgerEntry, error) {
	if _, err := getEmployee(ctx, s.store, userID); err != nil {
		return nil, mapStoreError(err, "")
	}

	entries, err := s.store.Ledger().ListByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}
	return entries, nil
}

// accountSnapshot computes the snapshot with whatever repositories it is
// given, so callers holding the account lock see their own writes.
func accountSnapshot(ctx context.Context, repos repository.Repositories, userID string) (*domain.AccountSnapshot, error) {
	wallet, err := repos.Ledger().SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending, err := repos.Withdrawals().SumByStatuses(ctx, userID, domain.ReservingWithdrawalStatuses)
	if err != nil {
		return nil, err
	}

	return &domain.AccountSnapshot{
		UserID:             userID,
		WalletBalance:      wallet,
		PendingWithdrawals: pending,
		AvailableToRequest: utils.FloorZero(wallet.Sub(pending)),
	}, nil
}
