package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/logger"
	"github.com/segyhp/ledger-engine/pkg/metrics"

	"go.uber.org/zap"
)

// runner executes check-then-act closures under a store lock and reruns the
// whole closure when the store reports a concurrency conflict.
type runner struct {
	store   repository.Store
	retries int
	logger  *zap.Logger
	metrics *metrics.Collector
}

func newRunner(store repository.Store, retries int, log *zap.Logger, m *metrics.Collector) runner {
	if retries < 0 {
		retries = 0
	}
	return runner{store: store, retries: retries, logger: logger.OrNop(log), metrics: m}
}

func (r runner) atomically(ctx context.Context, lockKey string, fn func(repos repository.Repositories) error) error {
	for attempt := 0; ; attempt++ {
		err := mapStoreError(r.store.Atomically(ctx, lockKey, fn), lockKey)
		if err == nil || !customError.IsRetryable(err) || attempt >= r.retries {
			return err
		}
		r.metrics.Retry()
		r.logger.Warn("retrying after concurrency conflict",
			zap.String("lock_key", lockKey),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// now reads the store clock.
func (r runner) now(ctx context.Context) (time.Time, error) {
	t, err := r.store.Now(ctx)
	if err != nil {
		return time.Time{}, mapStoreError(err, "")
	}
	return t, nil
}

// fail records a typed failure for operation and returns err unchanged.
func (r runner) fail(operation string, err error) error {
	if err != nil {
		r.metrics.Failure(operation, customError.Kind(err))
	}
	return err
}

// mapStoreError turns repository sentinels into business errors. Business
// errors raised inside a closure pass through.
func mapStoreError(err error, lockKey string) error {
	if err == nil {
		return nil
	}

	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrConflict):
		return customError.WrapConcurrencyConflict(lockKey, err)
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return customError.WrapStorageUnavailable(err)
	}

	return customError.WrapDatabaseError(err)
}

func getEmployee(ctx context.Context, repos repository.Repositories, userID string) (*domain.Employee, error) {
	employee, err := repos.Employees().GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapNotFound("account", userID)
	}
	return employee, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newStep(paymentID string, action domain.WorkflowAction, from, to, by string, at time.Time) *domain.WorkflowStep {
	return &domain.WorkflowStep{
		ID:             uuid.New(),
		PaymentID:      paymentID,
		Action:         action,
		FromDepartment: from,
		ToDepartment:   to,
		ProcessedBy:    by,
		Timestamp:      at,
	}
}
