package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const withdrawalColumns = `
	id, user_id, amount, phone_number, channel, status, approved_by, approved_at,
	processed_at, transaction_reference, failure_reason, rejection_reason, created_at, updated_at`

type withdrawalRepository struct {
	db sqlx.ExtContext
}

func NewWithdrawalRepository(db sqlx.ExtContext) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(ctx context.Context, request *domain.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.UserID,
		request.Amount,
		request.PhoneNumber,
		request.Channel,
		request.Status,
		request.ApprovedBy,
		request.ApprovedAt,
		request.ProcessedAt,
		request.TransactionReference,
		request.FailureReason,
		request.RejectionReason,
		request.CreatedAt,
		request.UpdatedAt,
	)

	return classify(err)
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	var request domain.WithdrawalRequest
	if err := sqlx.GetContext(ctx, r.db, &request, query, id); err != nil {
		return nil, classify(err)
	}

	return &request, nil
}

func (r *withdrawalRepository) Update(ctx context.Context, request *domain.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, approved_by = $3, approved_at = $4, processed_at = $5,
		    transaction_reference = $6, failure_reason = $7, rejection_reason = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.Status,
		request.ApprovedBy,
		request.ApprovedAt,
		request.ProcessedAt,
		request.TransactionReference,
		request.FailureReason,
		request.RejectionReason,
		request.UpdatedAt,
	)

	return affectedOne(result, err)
}

func (r *withdrawalRepository) ListByUser(ctx context.Context, userID string) ([]*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at`

	var requests []*domain.WithdrawalRequest
	if err := sqlx.SelectContext(ctx, r.db, &requests, query, userID); err != nil {
		return nil, classify(err)
	}

	return requests, nil
}

func (r *withdrawalRepository) SumByStatuses(ctx context.Context, userID string, statuses []string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawal_requests
		WHERE user_id = $1 AND status = ANY($2)
	`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.db, &total, query, userID, pq.Array(statuses)); err != nil {
		return decimal.Zero, classify(err)
	}

	return total, nil
}
