package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const moneyRequestColumns = `
	id, user_id, amount, reason, request_type, period_month, approval_stage,
	admin_approved, admin_approved_by, admin_approved_at,
	finance_approved, finance_approved_by, finance_approved_at,
	status, payment_channel, phone_number, rejection_reason, comments, created_at, updated_at`

type moneyRequestRepository struct {
	db sqlx.ExtContext
}

func NewMoneyRequestRepository(db sqlx.ExtContext) MoneyRequestRepository {
	return &moneyRequestRepository{db: db}
}

func (r *moneyRequestRepository) Create(ctx context.Context, request *domain.MoneyRequest) error {
	query := `
		INSERT INTO money_requests (` + moneyRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.UserID,
		request.Amount,
		request.Reason,
		request.RequestType,
		sqlDatePtr(request.PeriodMonth),
		request.ApprovalStage,
		request.AdminApproved,
		request.AdminApprovedBy,
		request.AdminApprovedAt,
		request.FinanceApproved,
		request.FinanceApprovedBy,
		request.FinanceApprovedAt,
		request.Status,
		request.PaymentChannel,
		request.PhoneNumber,
		request.RejectionReason,
		request.Comments,
		request.CreatedAt,
		request.UpdatedAt,
	)

	return classify(err)
}

func (r *moneyRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MoneyRequest, error) {
	query := `SELECT ` + moneyRequestColumns + ` FROM money_requests WHERE id = $1`

	var request domain.MoneyRequest
	if err := sqlx.GetContext(ctx, r.db, &request, query, id); err != nil {
		return nil, classify(err)
	}

	return &request, nil
}

// Update writes the mutable approval columns.
func (r *moneyRequestRepository) Update(ctx context.Context, request *domain.MoneyRequest) error {
	query := `
		UPDATE money_requests
		SET approval_stage = $2,
		    admin_approved = $3, admin_approved_by = $4, admin_approved_at = $5,
		    finance_approved = $6, finance_approved_by = $7, finance_approved_at = $8,
		    status = $9, rejection_reason = $10, comments = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.ApprovalStage,
		request.AdminApproved,
		request.AdminApprovedBy,
		request.AdminApprovedAt,
		request.FinanceApproved,
		request.FinanceApprovedBy,
		request.FinanceApprovedAt,
		request.Status,
		request.RejectionReason,
		request.Comments,
		request.UpdatedAt,
	)

	return affectedOne(result, err)
}

func (r *moneyRequestRepository) ListByUser(ctx context.Context, userID string) ([]*domain.MoneyRequest, error) {
	query := `SELECT ` + moneyRequestColumns + ` FROM money_requests WHERE user_id = $1 ORDER BY created_at`

	var requests []*domain.MoneyRequest
	if err := sqlx.SelectContext(ctx, r.db, &requests, query, userID); err != nil {
		return nil, classify(err)
	}

	return requests, nil
}

func (r *moneyRequestRepository) SumCreatedBetween(ctx context.Context, userID string, types []domain.RequestType, statuses []string, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM money_requests
		WHERE user_id = $1
		  AND request_type = ANY($2)
		  AND status = ANY($3)
		  AND created_at >= $4 AND created_at < $5
	`

	var total decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &total, query, userID, typesArray(types), pq.Array(statuses), from, to)
	if err != nil {
		return decimal.Zero, classify(err)
	}

	return total, nil
}

func (r *moneyRequestRepository) SumForPeriod(ctx context.Context, userID string, types []domain.RequestType, statuses []string, periodMonth time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM money_requests
		WHERE user_id = $1
		  AND request_type = ANY($2)
		  AND status = ANY($3)
		  AND period_month = $4
	`

	var total decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &total, query, userID, typesArray(types), pq.Array(statuses), sqlDate(periodMonth))
	if err != nil {
		return decimal.Zero, classify(err)
	}

	return total, nil
}
