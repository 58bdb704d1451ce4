package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/logger"

	"go.uber.org/zap"
)

// AuditService exposes the workflow trail. Steps for request transitions are
// written by the lifecycle services inside their own transactions; Append
// is for collaborators recording steps outside of them.
type AuditService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewAuditService(store repository.Store, log *zap.Logger) *AuditService {
	return &AuditService{store: store, logger: logger.OrNop(log)}
}

// Append records one step. It only fails when the store is unavailable or
// the step is malformed.
func (s *AuditService) Append(ctx context.Context, step *domain.WorkflowStep) error {
	if step == nil || strings.TrimSpace(step.PaymentID) == "" || step.Action == "" {
		return customError.WrapValidation("workflow step needs a payment_id and an action")
	}
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	if step.Timestamp.IsZero() {
		now, err := s.store.Now(ctx)
		if err != nil {
			return mapStoreError(err, "")
		}
		step.Timestamp = now
	}

	if err := s.store.Workflow().Append(ctx, step); err != nil {
		s.logger.Error("workflow append failed", zap.String("payment_id", step.PaymentID), zap.Error(err))
		return mapStoreError(err, "")
	}
	return nil
}

// GetHistory returns the steps of a request ordered by timestamp. An unknown
// id yields an empty history.
func (s *AuditService) GetHistory(ctx context.Context, paymentID string) ([]*domain.WorkflowStep, error) {
	steps, err := s.store.Workflow().ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, mapStoreError(err, "")
	}
	if steps == nil {
		steps = []*domain.WorkflowStep{}
	}
	return steps, nil
}
